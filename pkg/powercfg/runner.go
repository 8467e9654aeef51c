package powercfg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrNotFound = errors.New("executable not found")
	ErrTimeout  = errors.New("command timed out")
	ErrExit     = errors.New("command exited with non-zero status")
)

// Result is the captured outcome of a command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs an external tool. Implementations must honour ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec, bounded by a timeout.
type ExecRunner struct {
	mu      sync.RWMutex
	timeout time.Duration
	enc     encoding.Encoding
}

// NewExecRunner returns an ExecRunner. A non-positive timeout means
// DefaultTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	r := &ExecRunner{}
	r.SetTimeout(timeout)
	return r
}

// SetTimeout changes the per-command timeout.
func (r *ExecRunner) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.mu.Lock()
	r.timeout = timeout
	r.mu.Unlock()
}

// SetConsoleEncoding sets the encoding used for output that is not valid
// UTF-8, by IANA name (e.g. "EUC-KR"). An empty name disables decoding.
func (r *ExecRunner) SetConsoleEncoding(name string) error {
	var enc encoding.Encoding
	if name != "" {
		var err error
		enc, err = ianaindex.IANA.Encoding(name)
		if err != nil {
			return pkgerrors.Wrapf(err, "unknown console encoding %q", name)
		}
		if enc == nil {
			return pkgerrors.Errorf("console encoding %q is not supported", name)
		}
	}
	r.mu.Lock()
	r.enc = enc
	r.mu.Unlock()
	return nil
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.mu.RLock()
	timeout, enc := r.timeout, r.enc
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not wait forever on pipes inherited by grandchildren.
	cmd.WaitDelay = time.Second

	logrus.WithFields(logrus.Fields{
		"cmd":  name,
		"args": args,
	}).Trace("running command")

	err := cmd.Run()
	res := Result{
		Stdout: decode(stdout.Bytes(), enc),
		Stderr: decode(stderr.Bytes(), enc),
	}

	if err == nil {
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return res, pkgerrors.Wrapf(ErrNotFound, "%s", name)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, pkgerrors.Wrapf(ErrTimeout, "%s did not finish within %s", name, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, pkgerrors.Wrapf(ErrExit, "%s exited with status %d", name, res.ExitCode)
	}
	res.ExitCode = -1
	return res, pkgerrors.Wrapf(err, "failed to run %s", name)
}

func decode(b []byte, enc encoding.Encoding) string {
	if enc == nil || utf8.Valid(b) {
		return string(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
