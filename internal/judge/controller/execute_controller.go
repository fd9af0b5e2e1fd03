package controller

import (
	"context"
	"net/http"
	"strconv"

	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/service"
	appErr "tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	descUnsupportedLanguage = "Unsupported Language"
	descInvalidRequest      = "Invalid Request"
)

// Executor runs one program against one stdin blob.
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (service.Execution, error)
}

// ExecuteController serves the flat execution endpoint.
type ExecuteController struct {
	executor Executor
}

// NewExecuteController creates a new ExecuteController.
func NewExecuteController(executor Executor) *ExecuteController {
	return &ExecuteController{executor: executor}
}

// ExecuteRequest is the flat execution payload.
type ExecuteRequest struct {
	Language     string `json:"language"`
	Code         string `json:"code"`
	Stdin        string `json:"stdin"`
	FunctionName string `json:"functionName"`
	TimeLimit    int    `json:"timeLimit"`
	MemoryLimit  int    `json:"memoryLimit"`
}

// ExecuteStatus carries the judge status id and its description.
type ExecuteStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ExecuteResponse is the flat execution result.
type ExecuteResponse struct {
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	CompileOutput string        `json:"compile_output"`
	Status        ExecuteStatus `json:"status"`
	Time          string        `json:"time"`
	Memory        int64         `json:"memory"`
	StatusKind    string        `json:"status_kind,omitempty"`
	FunctionName  string        `json:"function_name,omitempty"`
	Backend       string        `json:"backend,omitempty"`
}

// Execute handles POST /api/execute.
func (h *ExecuteController) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejectExecution(c, descInvalidRequest, "invalid request body")
		return
	}
	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		rejectExecution(c, descUnsupportedLanguage, "Unsupported language: "+req.Language)
		return
	}

	exec, err := h.executor.Execute(c.Request.Context(), model.ExecutionRequest{
		Language:         lang,
		SourceCode:       req.Code,
		Stdin:            req.Stdin,
		FunctionNameHint: req.FunctionName,
		TimeLimitMillis:  req.TimeLimit,
		MemoryLimitKB:    req.MemoryLimit,
	})
	if err != nil {
		desc := descInvalidRequest
		if appErr.Is(err, appErr.LanguageNotSupported) {
			desc = descUnsupportedLanguage
		}
		rejectExecution(c, desc, err.Error())
		return
	}

	c.JSON(http.StatusOK, ExecuteResponse{
		Stdout:        exec.Stdout,
		Stderr:        exec.Stderr,
		CompileOutput: exec.CompileOutput,
		Status:        ExecuteStatus{ID: exec.StatusID, Description: exec.StatusDescription},
		Time:          strconv.FormatFloat(exec.TimeSeconds, 'f', 3, 64),
		Memory:        exec.MemoryKB,
		StatusKind:    string(exec.Kind),
		FunctionName:  exec.FunctionName,
		Backend:       exec.Source,
	})
}

// Rejections keep the flat shape and report compilation status 6.
func rejectExecution(c *gin.Context, description, message string) {
	logger.Warn(c.Request.Context(), "execution rejected",
		zap.String("reason", description),
		zap.String("message", message),
	)
	c.JSON(http.StatusBadRequest, ExecuteResponse{
		Stderr: message,
		Status: ExecuteStatus{ID: model.StatusCompilationError, Description: description},
		Time:   "0",
	})
}
