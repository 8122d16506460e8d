//go:build !windows

package capture

import "os/exec"

// FindRuntime looks up a capture tool in PATH
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", NewConfigError("capture tool '%s' not found: %s", runtime, err.Error())
	}

	return binPath, nil
}
