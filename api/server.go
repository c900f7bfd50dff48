package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"avatarvoice/core"
	"avatarvoice/factories"
	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/conversation"
	ttshandler "avatarvoice/handlers/tts"
	transportws "avatarvoice/transports/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxUploadBytes bounds a speech-to-text upload.
const maxUploadBytes = 25 << 20

// Responder answers a client-supplied history.
type Responder interface {
	Respond(ctx context.Context, raw []core.RawTurn, username string) core.Turn
}

// SessionRunner runs one conversation session for the lifetime of ctx.
type SessionRunner interface {
	Run(ctx context.Context, meta factories.SessionMeta, io factories.SessionIO, attach func(*conversation.Orchestrator)) error
}

// ServerDeps are the services behind the HTTP surface. Avatar is optional and
// receives every session's avatar events.
type ServerDeps struct {
	Chat     Responder
	TTS      ttshandler.TTSService
	STT      capture.STTService
	Sessions SessionRunner
	Avatar   *core.ExternalEventHandler
	Username string
}

type Server struct {
	chat     Responder
	tts      ttshandler.TTSService
	stt      capture.STTService
	sessions SessionRunner
	avatar   *core.ExternalEventHandler
	username string

	upgrader websocket.Upgrader
	active   atomic.Int64
	logger   *core.Logger
}

func NewServer(deps ServerDeps, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Server{
		chat:     deps.Chat,
		tts:      deps.TTS,
		stt:      deps.STT,
		sessions: deps.Sessions,
		avatar:   deps.Avatar,
		username: deps.Username,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(map[string]interface{}{"component": "api"}),
	}
}

type chatRequest struct {
	Messages []core.RawTurn `json:"messages"`
	Username string         `json:"username"`
}

// Chat never reports a model failure as an error status; the reply is then
// the persona's apology.
func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	username := req.Username
	if username == "" {
		username = s.username
	}
	reply := s.chat.Respond(c.Request.Context(), req.Messages, username)
	c.JSON(http.StatusOK, reply)
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

func (s *Server) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	payload, err := s.tts.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		s.logger.Warn("synthesis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	c.Data(http.StatusOK, contentType, payload.Data)
}

func (s *Server) SpeechToText(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "audio file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "audio file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not read audio file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not read audio file"})
		return
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/webm"
	}

	transcript, err := s.stt.Transcribe(c.Request.Context(), data, mimeType)
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": transcript, "success": true})
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.active.Load()})
}

// Session upgrades to the browser session socket and runs a conversation on
// it until either side closes.
func (s *Server) Session(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	username := c.Query("username")
	if username == "" {
		username = s.username
	}
	meta := factories.SessionMeta{
		ID:       fmt.Sprintf("web-%s", uuid.New().String()[:8]),
		Username: username,
	}
	logger := s.logger.With(map[string]interface{}{"session_id": meta.ID})
	ws := transportws.NewWebSocketService(conn, logger)
	defer ws.Close()

	var emitter core.EventEmitter = ws
	if s.avatar != nil {
		emitter = core.MultiEmitter{ws, s.avatar}
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sessionIO := factories.SessionIO{
		NewSink:    ws.NewSink,
		Microphone: ws.Microphone(),
		Emitter:    emitter,
		Username:   username,
	}
	err = s.sessions.Run(ctx, meta, sessionIO, func(session *conversation.Orchestrator) {
		go func() {
			defer cancel()
			if err := ws.Serve(ctx, session); err != nil {
				logger.Info("session connection closed", "error", err)
			}
		}()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("session ended with error", "error", err)
	}
}
