package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultZpoolCommand asks sudo not to prompt so a missing sudoers entry
// fails fast instead of hanging
var DefaultZpoolCommand = []string{"sudo", "-n", "zpool", "status"}

// ErrSudoPassword is returned when sudo would need a password for zpool status
var ErrSudoPassword = errors.New("sudo: a password is required")

// ErrZpoolMissing is returned when the zpool binary (or sudo) is not installed
var ErrZpoolMissing = errors.New("zpool not available")

// ZpoolStatus runs the zpool status command and returns its output
func ZpoolStatus(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		argv = DefaultZpoolCommand
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrZpoolMissing, err)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err == nil {
		return out.String(), nil
	}

	text := strings.TrimSpace(out.String())
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && strings.Contains(text, "password is required") {
		return "", ErrSudoPassword
	}
	if strings.Contains(text, "command not found") {
		return "", fmt.Errorf("%w: %s", ErrZpoolMissing, text)
	}
	if text != "" {
		return "", fmt.Errorf("zpool status failed: %s: %w", text, err)
	}
	return "", fmt.Errorf("zpool status failed: %w", err)
}
