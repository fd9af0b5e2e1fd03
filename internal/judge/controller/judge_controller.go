package controller

import (
	"context"
	"net/http"
	"strings"

	"tutorjudge/internal/judge/model"
	appErr "tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Submitter accepts submissions and reports their status.
type Submitter interface {
	Submit(ctx context.Context, req model.SubmissionRequest) (string, error)
	Status(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
}

// JudgeController handles submission endpoints.
type JudgeController struct {
	submitter Submitter
}

// NewJudgeController creates a new controller.
func NewJudgeController(submitter Submitter) *JudgeController {
	return &JudgeController{submitter: submitter}
}

// SubmitRequest defines the submission payload.
type SubmitRequest struct {
	Language     string           `json:"language" binding:"required"`
	Code         string           `json:"code" binding:"required"`
	FunctionName string           `json:"function_name"`
	TimeLimit    int              `json:"time_limit"`
	MemoryLimit  int              `json:"memory_limit"`
	TestCases    []model.TestCase `json:"test_cases" binding:"required"`
}

// SubmitResponse defines the submission response payload.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

// Create handles POST /api/v1/judge/submissions.
func (h *JudgeController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		response.ErrorWithCode(c, appErr.LanguageNotSupported, "Unsupported language: "+req.Language)
		return
	}

	id, err := h.submitter.Submit(c.Request.Context(), model.SubmissionRequest{
		Language:         lang,
		SourceCode:       req.Code,
		FunctionNameHint: req.FunctionName,
		TimeLimitMillis:  req.TimeLimit,
		MemoryLimitKB:    req.MemoryLimit,
		TestCases:        req.TestCases,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, SubmitResponse{SubmissionID: id, Status: string(model.StatusPending)})
}

// GetStatus returns status for one submission.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID := strings.TrimSpace(c.Param("id"))
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.submitter.Status(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Health handles GET /healthz.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
