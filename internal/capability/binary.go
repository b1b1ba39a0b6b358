package capability

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// probeTimeout bounds a version check so a wedged binary cannot stall startup
const probeTimeout = 10 * time.Second

// ResolveBinary returns the executable path for configured (if set) or the
// first of candidates found on PATH
func ResolveBinary(configured string, candidates ...string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("configured binary %s not found: %w", configured, err)
		}
		return path, nil
	}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s found on PATH", strings.Join(candidates, ", "))
}

// BinaryProbe builds a Probe that resolves a binary and runs it with
// versionArgs, reporting the first line of output as the detail
func BinaryProbe(configured string, versionArgs []string, candidates ...string) Probe {
	return func() (string, error) {
		path, err := ResolveBinary(configured, candidates...)
		if err != nil {
			return "", err
		}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, path, versionArgs...)
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("%s %s failed: %w", path, strings.Join(versionArgs, " "), err)
		}

		first, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
		return fmt.Sprintf("%s (%s)", path, strings.TrimSpace(first)), nil
	}
}
