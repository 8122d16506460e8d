//go:build windows

package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime looks up a capture tool bundled under bin/<tool>/windows/x64
// next to the executable or in the working directory, then in PATH.
func FindRuntime(runtime string) (string, error) {
	var lookup []string

	if exePath, err := os.Executable(); err == nil {
		lookup = append(lookup, filepath.Dir(exePath))
	}
	if wd, err := os.Getwd(); err == nil {
		lookup = append(lookup, wd)
	}

	for _, dir := range lookup {
		matches, err := filepath.Glob(filepath.Join(dir, "bin", "*", "windows", "x64", fmt.Sprintf("%s.exe", runtime)))
		if err != nil || len(matches) == 0 {
			continue // continue to next directory
		}

		if _, err = os.Stat(matches[0]); err != nil {
			continue
		}

		return matches[0], nil
	}

	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", NewConfigError("capture tool '%s' not found: %s", runtime, err.Error())
	}

	return binPath, nil
}
