package export

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/julianstephens/filialwatch/internal/logger"
)

// startCommand is replaced in tests.
var startCommand = func(name string, args ...string) error {
	_, err := start(exec.Command(name, args...))
	return err
}

// start launches cmd without waiting for it. The child is reaped in the
// background and its exit status is delivered on the returned channel.
func start(cmd *exec.Cmd) (<-chan error, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Debug("Opener exited with an error", "cmd", cmd.Path, "error", err)
		}
		done <- err
	}()
	return done, nil
}

// Open hands path to the platform opener. For the HTML document this
// brings up the browser, which shows the print dialog.
func Open(path string) error {
	var err error
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		err = startCommand("xdg-open", path)
	case "windows":
		err = startCommand("rundll32", "url.dll,FileProtocolHandler", path)
	case "darwin":
		err = startCommand("open", path)
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
