package factories

import (
	"context"
	"fmt"
	"time"

	"avatarvoice/core"
	"avatarvoice/handlers/conversation"
)

// PipelineConfig configures a Pipeline's lifecycle behaviour.
type PipelineConfig struct {
	// Timeout ends a session after this long. Zero means no limit.
	Timeout time.Duration
	// LogDir, when set, receives one .jsonl log file per session.
	LogDir string
}

// SessionMeta identifies one session in logs.
type SessionMeta struct {
	ID       string
	Username string
}

// Pipeline runs conversation sessions built by a SessionFactory.
type Pipeline struct {
	config  PipelineConfig
	factory *SessionFactory
	logger  *core.Logger
}

// NewPipeline creates a Pipeline that uses factory to construct one
// orchestrator per session.
func NewPipeline(factory *SessionFactory, config PipelineConfig, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		factory: factory,
		config:  config,
		logger:  logger,
	}
}

// Run starts a session, hands it to attach (which wires the transport to
// the orchestrator's inputs) and blocks until ctx ends, the timeout fires or
// the session tears itself down.
func (p *Pipeline) Run(ctx context.Context, meta SessionMeta, io SessionIO, attach func(*conversation.Orchestrator)) (result error) {
	base, closeLog := p.sessionLogger(meta)
	defer closeLog()
	ctx = core.ContextWithSessionLogger(ctx, base)
	logger := base.With(map[string]interface{}{"component": "pipeline", "session_id": meta.ID})

	select {
	case <-ctx.Done():
		logger.Info("context already cancelled, skipping session")
		return nil
	default:
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panicked", "panic", r)
			result = fmt.Errorf("session %s: panic: %v", meta.ID, r)
		}
	}()

	if io.Username == "" {
		io.Username = meta.Username
	}
	session := p.factory.NewSession(io, base)
	session.Start(ctx)
	defer session.Close()
	if attach != nil {
		attach(session)
	}

	logger.Info("session started")

	var timerC <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-ctx.Done():
		logger.Info("context cancelled, stopping session")
	case <-timerC:
		logger.Warn("timeout reached, stopping session")
		result = context.DeadlineExceeded
	case <-session.Done():
		logger.Info("session finished")
	}
	return result
}

// sessionLogger tees to a per-session file when LogDir is configured.
func (p *Pipeline) sessionLogger(meta SessionMeta) (*core.Logger, func()) {
	if p.config.LogDir == "" {
		return p.logger, func() {}
	}
	writer, err := core.NewSessionLogWriter(p.config.LogDir, core.SessionMetadata{
		SessionID: meta.ID,
		Username:  meta.Username,
		Persona:   p.factory.Settings().Persona.Name,
	})
	if err != nil {
		p.logger.Warn("session log unavailable", "error", err)
		return p.logger, func() {}
	}
	return core.NewSessionLogger(p.logger, writer), writer.Close
}
