package docker

import (
	"time"
)

// Runtime is how one language is run: the image and the interpreter
// invocation the source is appended to.
type Runtime struct {
	Image   string
	Command []string
}

func (r Runtime) command(code string) []string {
	cmd := make([]string, 0, len(r.Command)+1)
	cmd = append(cmd, r.Command...)
	return append(cmd, code)
}

// Config holds the sandbox limits shared by every language.
type Config struct {
	// Runtimes maps a language id to its runtime. One warm pool is kept
	// per entry.
	Runtimes map[string]Runtime
	// MemoryLimit is in bytes.
	MemoryLimit int64
	CPULimit    float64
	Timeout     time.Duration
	// PoolSize is the number of warm containers kept per language.
	PoolSize int
	// MaxOutputBytes caps stdout and stderr separately.
	MaxOutputBytes int
}

// DefaultConfig sandboxes python and javascript.
func DefaultConfig() Config {
	return Config{
		Runtimes: map[string]Runtime{
			"python":     {Image: "python:3.12-alpine", Command: []string{"python", "-c"}},
			"javascript": {Image: "node:22-alpine", Command: []string{"node", "-e"}},
		},
		MemoryLimit:    128 * 1024 * 1024,
		CPULimit:       0.5,
		Timeout:        5 * time.Second,
		PoolSize:       2,
		MaxOutputBytes: 64 * 1024,
	}
}
