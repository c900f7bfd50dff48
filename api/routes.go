package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the HTTP endpoints and the browser session socket.
func RegisterRoutes(r *gin.Engine, server *Server) {
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/chat", server.Chat)
		apiGroup.POST("/synthesize", server.Synthesize)
		apiGroup.POST("/speech-to-text", server.SpeechToText)
	}

	r.GET("/health", server.Health)
	r.GET("/ws", server.Session)
	if server.avatar != nil {
		r.GET("/avatar/events", gin.WrapH(server.avatar))
	}
}
