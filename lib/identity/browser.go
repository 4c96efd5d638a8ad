// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser launches the platform's browser-open command against
// url. There is no library in this repository's dependency set for
// cross-platform browser launching (it is inherently an OS-command
// invocation, not something a library abstracts usefully over
// os/exec), so this is a direct platform-command dispatch.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		opener, err := firstAvailableLinuxOpener()
		if err != nil {
			return err
		}
		cmd = exec.Command(opener, url)
	default:
		return fmt.Errorf("identity: unsupported platform %q for opening a browser", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("identity: launching browser: %w", err)
	}
	return nil
}

func firstAvailableLinuxOpener() (string, error) {
	for _, candidate := range []string{"xdg-open", "x-www-browser", "www-browser"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("identity: no browser-open command found on PATH")
}
