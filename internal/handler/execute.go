package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/velric/velric-server/internal/executor"
)

// ExecuteHandler runs candidate code in the sandbox.
type ExecuteHandler struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewExecuteHandler(exec executor.Executor, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:   exec,
		logger: logger,
	}
}

type executeResponse struct {
	Success       bool   `json:"success"`
	Language      string `json:"language"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	Output        string `json:"output"`
	ExitCode      int    `json:"exitCode"`
	ExecutionTime int64  `json:"executionTime"` // milliseconds
}

// HandleExecute runs one snippet.
//
// HTTP: POST /api/code/execute
// REQUEST BODY: {"code": "print('hi')", "language": "python"}
//
// An unsupported language comes back from the executor as a validation
// error and is answered with 400.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "code cannot be empty", Field: "code"})
		return
	}

	result, err := h.exec.Execute(r.Context(), req)
	if err != nil {
		h.logger.Error("code execution failed",
			slog.String("language", req.Language),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	output := result.Stdout
	if output == "" {
		output = result.Stderr
	}
	writeJSON(w, http.StatusOK, executeResponse{
		Success:       true,
		Language:      result.Language,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		Output:        output,
		ExitCode:      result.ExitCode,
		ExecutionTime: result.Duration.Milliseconds(),
	})
}
