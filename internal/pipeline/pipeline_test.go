package pipeline

import (
	"context"
	"strings"
	"sync"
)

// nopLogger satisfies logger.Logger for tests without touching zap.
type nopLogger struct{}

func (nopLogger) InitLogger()                                  {}
func (nopLogger) Debug(args ...interface{})                    {}
func (nopLogger) Debugf(template string, args ...interface{})  {}
func (nopLogger) Info(args ...interface{})                     {}
func (nopLogger) Infof(template string, args ...interface{})   {}
func (nopLogger) Warn(args ...interface{})                     {}
func (nopLogger) Warnf(template string, args ...interface{})   {}
func (nopLogger) Error(args ...interface{})                    {}
func (nopLogger) Errorf(template string, args ...interface{})  {}
func (nopLogger) DPanic(args ...interface{})                   {}
func (nopLogger) DPanicf(template string, args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{})                    {}
func (nopLogger) Fatalf(template string, args ...interface{})  {}

// fakeRunner dispatches invocations to per-command callbacks and
// records every argv it sees.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	onFfprobe func(args []string) ([]byte, error)
	onFfmpeg  func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	switch name {
	case "ffprobe":
		if f.onFfprobe != nil {
			return f.onFfprobe(args)
		}
	case "ffmpeg":
		if f.onFfmpeg != nil {
			return f.onFfmpeg(args)
		}
	}
	return nil, nil
}

func (f *fakeRunner) callsFor(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

// argValue returns the argument following flag, or "".
func argValue(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func hasArg(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}

func isThumbnailCall(argv []string) bool {
	return argv[0] == "ffmpeg" && hasArg(argv, "-vframes")
}

func isEncodeCall(argv []string) bool {
	return argv[0] == "ffmpeg" && !hasArg(argv, "-vframes")
}

func containsScale(argv []string, scale string) bool {
	for _, a := range argv {
		if strings.Contains(a, scale) {
			return true
		}
	}
	return false
}
