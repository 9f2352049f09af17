package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voiceinterview/internal/api/middleware"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/services"
	"github.com/yoockh/voiceinterview/internal/utils"
)

const maxWebhookBody = 1 << 20

type VapiHandler struct {
	dispatcher services.Dispatcher
}

func NewVapiHandler(d services.Dispatcher) *VapiHandler {
	return &VapiHandler{dispatcher: d}
}

func (h *VapiHandler) Webhook(c *gin.Context) {
	const op = "VapiHandler.Webhook"

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read body", err))
		return
	}
	ev, err := decodeWebhook(body)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid webhook body", err))
		return
	}
	if id := ev.CorrelationID(); id != "" {
		c.Set(middleware.CtxCallID, id)
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decodeWebhook accepts the bare event and the {"message": event} envelope
// newer server URL payloads use.
func decodeWebhook(body []byte) (*models.WebhookEvent, error) {
	var env struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	raw := body
	if env.Type == "" && len(bytes.TrimSpace(env.Message)) > 0 && bytes.TrimSpace(env.Message)[0] == '{' {
		raw = env.Message
	}

	var ev models.WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
