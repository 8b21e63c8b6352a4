//go:build !windows

package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// unixProcessController shells out to pgrep/pkill, which are present on the
// Linux and macOS hosts this runs on.
type unixProcessController struct{}

func newProcessController() ProcessController {
	return unixProcessController{}
}

func (unixProcessController) IsRunning(name string) (bool, error) {
	err := exec.Command("pgrep", "-x", name).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// pgrep exit 1: no processes matched.
		return false, nil
	}
	return false, fmt.Errorf("pgrep %s: %w", name, err)
}

func (unixProcessController) TerminateGracefully(name string) error {
	return runIgnoreNoMatch(exec.Command("pkill", "-TERM", "-x", name))
}

func (unixProcessController) ForceKill(name string) error {
	return runIgnoreNoMatch(exec.Command("pkill", "-KILL", "-x", name))
}

func (unixProcessController) SpawnDetached(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func runIgnoreNoMatch(cmd *exec.Cmd) error {
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return nil
	}
	return err
}
