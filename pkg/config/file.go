package config

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/utils/ptr"
)

// PortEnv overrides the configured port.
const PortEnv = "PORT"

var (
	defaultFileConfig = &RawFileConfig{
		Port: ptr.To(3012),
		AllowedOrigins: []string{
			"http://localhost:3001",
			"http://localhost:3002",
			"http://10.252.92.75",
			"http://aipc.sec.samsung.net",
		},
		ReconcileSchedule:     ptr.To("@every 5s"),
		CommandTimeoutSeconds: ptr.To(10),
		PlanNamesFile:         ptr.To(""),
		ConsoleEncoding:       ptr.To(""),
		SimulatePlanControl:   ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
	getenv   func(string) string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
		getenv:   os.Getenv,
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
		getenv:   os.Getenv,
	}

	return f
}

type RawFileConfig struct {
	Port                  *int     `json:"port,omitempty"`
	AllowedOrigins        []string `json:"allowedOrigins,omitempty"`
	ReconcileSchedule     *string  `json:"reconcileSchedule,omitempty"`
	CommandTimeoutSeconds *int     `json:"commandTimeoutSeconds,omitempty"`
	PlanNamesFile         *string  `json:"planNamesFile,omitempty"`
	ConsoleEncoding       *string  `json:"consoleEncoding,omitempty"`
	SimulatePlanControl   *bool    `json:"simulatePlanControl,omitempty"`
}

func (f *File) Port() int {
	if v := strings.TrimSpace(f.getenv(PortEnv)); v != "" {
		port, err := strconv.Atoi(v)
		if err == nil && port > 0 && port < 65536 {
			return port
		}
		logrus.Warnf("ignoring invalid %s=%q", PortEnv, v)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}
	if f.c.Port != nil {
		return *f.c.Port
	}
	return *defaultFileConfig.Port
}

func (f *File) AllowedOrigins() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	origins := defaultFileConfig.AllowedOrigins
	if f.c.AllowedOrigins != nil {
		origins = f.c.AllowedOrigins
	}

	return append([]string(nil), origins...)
}

func (f *File) ReconcileSchedule() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	if f.c.ReconcileSchedule != nil && *f.c.ReconcileSchedule != "" {
		return *f.c.ReconcileSchedule
	}
	return *defaultFileConfig.ReconcileSchedule
}

func (f *File) CommandTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	secs := *defaultFileConfig.CommandTimeoutSeconds
	if f.c.CommandTimeoutSeconds != nil && *f.c.CommandTimeoutSeconds > 0 {
		secs = *f.c.CommandTimeoutSeconds
	}

	return time.Duration(secs) * time.Second
}

func (f *File) PlanNamesFile() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	if f.c.PlanNamesFile != nil {
		return *f.c.PlanNamesFile
	}
	return *defaultFileConfig.PlanNamesFile
}

func (f *File) ConsoleEncoding() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	if f.c.ConsoleEncoding != nil {
		return *f.c.ConsoleEncoding
	}
	return *defaultFileConfig.ConsoleEncoding
}

func (f *File) SimulatePlanControl() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	if f.c.SimulatePlanControl != nil {
		return *f.c.SimulatePlanControl
	}
	return *defaultFileConfig.SimulatePlanControl
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

// LogrusFields reads each value under its own lock, so a concurrent Load may
// show up partway through.
func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"port":                f.Port(),
		"allowedOrigins":      f.AllowedOrigins(),
		"reconcileSchedule":   f.ReconcileSchedule(),
		"commandTimeout":      f.CommandTimeout().String(),
		"planNamesFile":       f.PlanNamesFile(),
		"consoleEncoding":     f.ConsoleEncoding(),
		"simulatePlanControl": f.SimulatePlanControl(),
	}
}
