package daemon

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Uninstall stops the daemon task and removes it. A task that does not
// exist is not an error.
func Uninstall() error {
	if runtime.GOOS != "windows" {
		return ErrUnsupported
	}

	logrus.Infof("stopping powerd")

	// Not running is fine.
	if out, err := runSchtasks("/End", "/TN", TaskName); err != nil {
		logrus.Debugf("schtasks /End: %v: %s", err, strings.TrimSpace(string(out)))
	}

	logrus.Infof("removing scheduled task %s", TaskName)

	out, err := runSchtasks("/Delete", "/TN", TaskName, "/F")
	if err != nil {
		if isTaskMissing(string(out)) {
			return nil
		}
		return fmt.Errorf("failed to delete scheduled task: %w: %s. Are you an administrator?", err, strings.TrimSpace(string(out)))
	}

	return nil
}

func isTaskMissing(out string) bool {
	out = strings.ToLower(out)
	return strings.Contains(out, "cannot find") || strings.Contains(out, "does not exist")
}
