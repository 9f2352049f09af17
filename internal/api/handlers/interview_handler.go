package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/services"
	"github.com/yoockh/voiceinterview/internal/utils"
	"gorm.io/datatypes"
)

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type SaveInterviewRequest struct {
	Role            string            `json:"role" binding:"required"`
	InterviewType   string            `json:"interviewType"`
	Difficulty      string            `json:"difficulty"`
	CurrentRole     string            `json:"currentRole"`
	NumQuestions    int               `json:"numQuestions"`
	Questions       []models.Question `json:"questions"`
	Answers         []models.Answer   `json:"answers"`
	OverallScore    *int              `json:"overallScore"`
	Feedback        string            `json:"feedback"`
	Strengths       []string          `json:"strengths"`
	Improvements    []string          `json:"improvements"`
	DurationSeconds int               `json:"durationSeconds"`
	VapiCallID      *string           `json:"vapiCallId"`
}

func (h *InterviewHandler) Save(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SaveInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Save", "invalid request body", err))
		return
	}
	if req.OverallScore != nil && (*req.OverallScore < 0 || *req.OverallScore > 100) {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Save", "overallScore must be between 0 and 100", nil))
		return
	}

	rec, err := h.svc.Save(c.Request.Context(), &models.InterviewRecord{
		UserID:          userID,
		Role:            req.Role,
		InterviewType:   req.InterviewType,
		Difficulty:      req.Difficulty,
		CurrentRole:     req.CurrentRole,
		NumQuestions:    req.NumQuestions,
		Questions:       datatypes.NewJSONType(req.Questions),
		Answers:         datatypes.NewJSONType(req.Answers),
		OverallScore:    req.OverallScore,
		Feedback:        req.Feedback,
		Strengths:       pq.StringArray(req.Strengths),
		Improvements:    pq.StringArray(req.Improvements),
		DurationSeconds: req.DurationSeconds,
		Status:          models.RecordCompleted,
		VapiCallID:      req.VapiCallID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "interview": rec})
}

func (h *InterviewHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.History", "limit must be an integer", err))
			return
		}
		limit = n
	}

	rows, err := h.svc.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": rows})
}
