//go:build windows

package browser

import (
	"os/exec"
	"strings"
)

// windowsProcessController shells out to tasklist/taskkill.
type windowsProcessController struct{}

func newProcessController() ProcessController {
	return windowsProcessController{}
}

func (windowsProcessController) IsRunning(name string) (bool, error) {
	out, err := exec.Command("tasklist", "/FI", "IMAGENAME eq "+name, "/NH").Output()
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(string(out)), strings.ToLower(name)), nil
}

func (windowsProcessController) TerminateGracefully(name string) error {
	// taskkill without /F sends WM_CLOSE, the graceful path on Windows.
	return exec.Command("taskkill", "/IM", name, "/T").Run()
}

func (windowsProcessController) ForceKill(name string) error {
	return exec.Command("taskkill", "/IM", name, "/T", "/F").Run()
}

func (windowsProcessController) SpawnDetached(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
