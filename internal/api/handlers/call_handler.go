package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voiceinterview/internal/services"
	"github.com/yoockh/voiceinterview/internal/sessionstore"
	"github.com/yoockh/voiceinterview/internal/utils"
)

// CallHandler exposes live call state to operators.
type CallHandler struct {
	store       sessionstore.Store
	transcripts services.TranscriptService // nil when Mongo is not configured
}

func NewCallHandler(store sessionstore.Store, transcripts services.TranscriptService) *CallHandler {
	return &CallHandler{store: store, transcripts: transcripts}
}

func (h *CallHandler) Session(c *gin.Context) {
	const op = "CallHandler.Session"

	sess, err := h.store.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			writeError(c, utils.E(utils.CodeNotFound, op, "no live session for call", err))
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *CallHandler) Transcript(c *gin.Context) {
	const op = "CallHandler.Transcript"

	if h.transcripts == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "transcript log is not configured", nil))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := h.transcripts.ListByCall(c.Request.Context(), c.Param("call_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": c.Param("call_id"), "entries": rows})
}
