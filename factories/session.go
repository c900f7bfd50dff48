package factories

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"avatarvoice/core"
	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/chat"
	"avatarvoice/handlers/conversation"
	ttshandler "avatarvoice/handlers/tts"
)

// SessionFactory holds the provider clients shared by every conversation
// session and builds one Orchestrator per session.
type SessionFactory struct {
	settings SettingsConfig
	logger   *core.Logger

	completion  *chat.ChatCompletionClient
	chatHandler *chat.ChatHandler
	tts         TTSService
	synthesizer *ttshandler.SpeechSynthesizer
	stt         STTService
	services    []core.IService

	mu            sync.Mutex
	isInitialized bool
}

// SessionIO is what a transport supplies for one session.
type SessionIO struct {
	NewSink    conversation.SinkFactory
	Microphone capture.Microphone
	Emitter    core.EventEmitter
	// Username overrides the configured display name when set.
	Username string
}

// NewSessionFactory builds all provider clients described by settings.
// Call Init before creating sessions.
func NewSessionFactory(settings SettingsConfig, logger *core.Logger) (*SessionFactory, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	completion, chatServices, err := BuildChatClient(settings.Chat, settings.Persona, logger)
	if err != nil {
		return nil, fmt.Errorf("session factory: %w", err)
	}
	tts, err := BuildTTSService(settings.TTS, logger)
	if err != nil {
		return nil, fmt.Errorf("session factory: %w", err)
	}
	stt, err := BuildSTTService(settings.STT, logger)
	if err != nil {
		return nil, fmt.Errorf("session factory: %w", err)
	}

	services := append([]core.IService{}, chatServices...)
	services = append(services, tts, stt)

	return &SessionFactory{
		settings:    settings,
		logger:      logger,
		completion:  completion,
		chatHandler: chat.NewChatHandler(completion, logger),
		tts:         tts,
		synthesizer: ttshandler.NewSpeechSynthesizer(tts, logger),
		stt:         stt,
		services:    services,
	}, nil
}

// Init prepares every provider client. All services are attempted; the
// errors are joined.
func (f *SessionFactory) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isInitialized {
		return nil
	}
	var errs []error
	for _, svc := range f.services {
		if err := svc.Init(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("session factory: init: %w", errors.Join(errs...))
	}
	f.isInitialized = true
	return nil
}

func (f *SessionFactory) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, svc := range f.services {
		if err := svc.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	f.isInitialized = false
	return errors.Join(errs...)
}

func (f *SessionFactory) Settings() SettingsConfig {
	return f.settings
}

// ChatHandler answers stateless chat requests.
func (f *SessionFactory) ChatHandler() *chat.ChatHandler {
	return f.chatHandler
}

func (f *SessionFactory) TTS() ttshandler.TTSService {
	return f.tts
}

func (f *SessionFactory) STT() capture.STTService {
	return f.stt
}

// NewSession builds an Orchestrator wired to the shared providers and the
// transport's devices. The caller starts and closes it.
func (f *SessionFactory) NewSession(io SessionIO, logger *core.Logger) *conversation.Orchestrator {
	if logger == nil {
		logger = f.logger
	}
	config := f.settings.OrchestratorConfig()
	if io.Username != "" {
		config.Username = io.Username
	}
	return conversation.NewOrchestrator(conversation.Dependencies{
		Completer:   f.completion,
		Synthesizer: f.synthesizer,
		NewSink:     io.NewSink,
		Microphone:  io.Microphone,
		STT:         f.stt,
		Emitter:     io.Emitter,
	}, config, logger)
}
