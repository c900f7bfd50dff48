package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatarvoice/api"
	"avatarvoice/core"
	"avatarvoice/factories"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveNoAvatar  bool
	sessionTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API and the browser session socket",
	Long: `Starts the HTTP server.

Routes:
  POST /api/chat            - one chat completion for a client-held history
  POST /api/synthesize      - text to audio bytes
  POST /api/speech-to-text  - multipart "audio" upload to text
  GET  /ws                  - browser conversation session
  GET  /avatar/events       - avatar event stream`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: settings server.addr or :8080)")
	serveCmd.Flags().BoolVar(&serveNoAvatar, "no-avatar", false, "do not start the avatar event server")
	serveCmd.Flags().DurationVar(&sessionTimeout, "session-timeout", 0, "maximum length of one browser session (default: $WORKER_TIMEOUT_SECONDS or 50m)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := core.GetLogger().With(map[string]interface{}{"component": "server"})
	settings := loadSettings(settingsPath)
	if serveAddr != "" {
		settings.Server.Addr = serveAddr
	}
	if sessionTimeout == 0 {
		sessionTimeout = time.Duration(getEnvAsInt("WORKER_TIMEOUT_SECONDS", 3000)) * time.Second
	}
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		settings.Server.LogDir = dir
	}

	factory, err := factories.NewSessionFactory(settings, logger)
	if err != nil {
		return err
	}
	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	err = factory.Init(initCtx)
	cancelInit()
	if err != nil {
		return fmt.Errorf("init providers: %w", err)
	}
	defer factory.Cleanup()

	var avatar *core.ExternalEventHandler
	if !serveNoAvatar {
		avatar = core.NewExternalEventHandler(settings.Server.AvatarEventsAddr, logger)
		avatar.Initialize(ctx, nil)
	}

	pipeline := factories.NewPipeline(factory, factories.PipelineConfig{
		Timeout: sessionTimeout,
		LogDir:  settings.Server.LogDir,
	}, logger)

	server := api.NewServer(api.ServerDeps{
		Chat:     factory.ChatHandler(),
		TTS:      factory.TTS(),
		STT:      factory.STT(),
		Sessions: pipeline,
		Avatar:   avatar,
		Username: settings.Username,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	api.RegisterRoutes(router, server)

	httpServer := &http.Server{
		Addr:    settings.Server.Addr,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", settings.Server.Addr, "persona", settings.Persona.Name)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// requestLogger logs one line per request through the core logger.
func requestLogger(logger *core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
