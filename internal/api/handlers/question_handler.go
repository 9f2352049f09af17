package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/services"
	"github.com/yoockh/voiceinterview/internal/utils"
)

// QuestionHandler generates a question set outside of a voice call, for
// previews in the browser.
type QuestionHandler struct {
	questions services.QuestionGenerator
}

func NewQuestionHandler(q services.QuestionGenerator) *QuestionHandler {
	return &QuestionHandler{questions: q}
}

func (h *QuestionHandler) Generate(c *gin.Context) {
	var req models.GenerateQuestionsParams
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "QuestionHandler.Generate", "invalid request body", err))
		return
	}

	qs, err := h.questions.Generate(c.Request.Context(), req.InterviewParams())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}
