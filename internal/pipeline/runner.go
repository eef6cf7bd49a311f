package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/salmlabs/video-pipeline/pkg/logger"
)

// stderr is only sampled into logs, never stored whole; long encodes
// can emit megabytes of progress lines.
const stderrSampleBytes = 2048

// Runner invokes an external tool and returns its captured stdout.
// Deadlines come in through ctx; expiry kills the subprocess. Non-zero
// exits surface as *ExitError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct {
	logger logger.Logger
}

// NewExecRunner returns the exec-backed Runner after verifying that
// every required binary is reachable on PATH. A missing binary is a
// deployment problem, caught at startup rather than per request.
func NewExecRunner(log logger.Logger, binaries ...string) (Runner, error) {
	for _, bin := range binaries {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("required binary %q not found on PATH: %w", bin, err)
		}
	}
	return &execRunner{logger: log}, nil
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Warnf("%s killed: %v", name, ctxErr)
		return stdout.Bytes(), ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		sample := sampleTail(stderr.Bytes(), stderrSampleBytes)
		r.logger.Debugf("%s stderr: %s", name, sample)
		return stdout.Bytes(), &ExitError{Name: name, Code: exitErr.ExitCode(), Stderr: sample}
	}
	return stdout.Bytes(), fmt.Errorf("run %s: %w", name, err)
}

// sampleTail keeps the end of the output; ffmpeg prints the actual
// failure reason last.
func sampleTail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
