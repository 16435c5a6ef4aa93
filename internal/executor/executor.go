// Package executor runs candidate code in an isolated sandbox.
package executor

import (
	"context"
	"time"
)

// DefaultLanguage is used when a request names none.
const DefaultLanguage = "python"

// ExecutionRequest is the body of POST /api/code/execute.
type ExecutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// ExecutionResult is what the sandbox printed and how it exited. ExitCode
// 124 means the run was killed by the timeout.
type ExecutionResult struct {
	Language string        `json:"language"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// Executor runs code. An unsupported language is an apperror validation
// error.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
