package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// TaskName is the Windows scheduled task that starts the daemon at logon.
const TaskName = "powerd"

// ErrUnsupported is returned on platforms without scheduled tasks.
var ErrUnsupported = fmt.Errorf("service installation is only supported on Windows, not %s", runtime.GOOS)

// runSchtasks is replaced in tests.
var runSchtasks = func(args ...string) ([]byte, error) {
	return exec.Command("schtasks", args...).CombinedOutput()
}

// Install registers a scheduled task that runs "<this binary> daemon" at
// logon with highest privileges, then starts it.
func Install(configPath string) error {
	if runtime.GOOS != "windows" {
		return ErrUnsupported
	}

	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	logrus.Infof("creating scheduled task %s", TaskName)
	out, err := runSchtasks(createArgs(exePath, configPath)...)
	if err != nil {
		return fmt.Errorf("failed to create scheduled task: %w: %s", err, strings.TrimSpace(string(out)))
	}

	logrus.Infof("starting powerd")
	out, err = runSchtasks("/Run", "/TN", TaskName)
	if err != nil {
		return fmt.Errorf("failed to start scheduled task: %w: %s", err, strings.TrimSpace(string(out)))
	}

	return nil
}

func createArgs(exePath, configPath string) []string {
	tr := fmt.Sprintf(`"%s" daemon`, exePath)
	if configPath != "" {
		tr += fmt.Sprintf(` --config "%s"`, configPath)
	}
	return []string{
		"/Create",
		"/TN", TaskName,
		"/TR", tr,
		"/SC", "ONLOGON",
		"/RL", "HIGHEST",
		"/F",
	}
}
