package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yoockh/voiceinterview/internal/api/handlers"
	"github.com/yoockh/voiceinterview/internal/api/middleware"
)

// Deps carries the handlers main could build. A nil handler means its
// backing store is not configured and its routes are not registered.
type Deps struct {
	Vapi       *handlers.VapiHandler
	Interviews *handlers.InterviewHandler
	Questions  *handlers.QuestionHandler
	Calls      *handlers.CallHandler
	WS         *handlers.WSHandler

	JWT        middleware.JWTConfig
	VapiSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Voice platform server URL
	r.POST("/vapi/webhook", middleware.VapiSecret(d.VapiSecret), d.Vapi.Webhook)

	if d.JWT.Secret == "" {
		return
	}

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	if d.Interviews != nil {
		auth.POST("/interviews/save", d.Interviews.Save)
		auth.GET("/interviews/history", d.Interviews.History)
	}
	if d.Questions != nil {
		auth.POST("/questions/generate", d.Questions.Generate)
	}
	if d.WS != nil {
		auth.GET("/ws/calls/:call_id", d.WS.CallStatusWS)
	}

	if d.Calls != nil {
		admin := auth.Group("/calls")
		admin.Use(middleware.RequireAdmin())
		admin.GET("/:call_id/session", d.Calls.Session)
		admin.GET("/:call_id/transcript", d.Calls.Transcript)
	}
}
