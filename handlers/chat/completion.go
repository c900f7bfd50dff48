package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"avatarvoice/core"
)

// ChatService is a text generation backend: one prompt in, one reply out.
type ChatService interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// ModelStage is one completion attempt: a backend and its sampling temperature.
type ModelStage struct {
	Name        string
	Service     ChatService
	Temperature float32
}

type CompletionConfig struct {
	Backoff time.Duration // wait between the primary and the fallback attempt
}

func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{Backoff: time.Second}
}

// ChatCompletionClient turns a conversation into exactly one assistant Turn:
// the primary model's reply, else the fallback model's reply after one
// backoff, else the persona's apology. It never returns an error.
type ChatCompletionClient struct {
	primary  ModelStage
	fallback ModelStage
	persona  Persona
	config   CompletionConfig
	logger   *core.Logger
}

func NewChatCompletionClient(primary, fallback ModelStage, persona Persona, config CompletionConfig, logger *core.Logger) *ChatCompletionClient {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ChatCompletionClient{
		primary:  primary,
		fallback: fallback,
		persona:  persona.withDefaults(),
		config:   config,
		logger:   logger.With(map[string]interface{}{"component": "chat_completion"}),
	}
}

func (c *ChatCompletionClient) Persona() Persona {
	return c.persona
}

// BuildPrompt prefixes the persona instructions to the most recent user turn.
// Earlier turns are not forwarded.
func (c *ChatCompletionClient) BuildPrompt(history []core.Turn, username string) (string, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return c.persona.SystemMessage(username) + "\n\nUser: " + history[i].Content, nil
		}
	}
	return "", core.ErrNoUserTurn
}

// Complete runs the primary attempt, then at most one fallback attempt, and
// collapses the outcome to a Turn.
func (c *ChatCompletionClient) Complete(ctx context.Context, history []core.Turn, username string) core.Turn {
	logger := core.LoggerFromContext(ctx, c.logger)
	apology := core.AssistantTurn(c.persona.Apology(username))
	prompt, err := c.BuildPrompt(history, username)
	if err != nil {
		logger.Warn("nothing to answer, replying with apology", "error", err)
		return apology
	}

	result := c.attempt(ctx, c.primary, prompt).orElse(func(err error) attemptResult {
		logger.Warn("primary model failed, trying fallback", "model", c.primary.Name, "error", err)
		if waitErr := c.wait(ctx); waitErr != nil {
			return failed(waitErr)
		}
		return c.attempt(ctx, c.fallback, prompt)
	})

	if result.err != nil {
		logger.Error("fallback model failed, replying with apology", "model", c.fallback.Name,
			"error", fmt.Errorf("%w: %v", core.ErrCompletionExhausted, result.err))
	}
	return result.turnOr(apology)
}

func (c *ChatCompletionClient) attempt(ctx context.Context, stage ModelStage, prompt string) attemptResult {
	if stage.Service == nil {
		return failed(fmt.Errorf("model stage %q: no service configured", stage.Name))
	}
	text, err := stage.Service.Generate(ctx, prompt, stage.Temperature)
	if err != nil {
		return failed(fmt.Errorf("model stage %q: %w", stage.Name, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return failed(fmt.Errorf("model stage %q: %w", stage.Name, errEmptyReply))
	}
	return succeeded(core.AssistantTurn(text))
}

func (c *ChatCompletionClient) wait(ctx context.Context) error {
	if c.config.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.config.Backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errEmptyReply = errors.New("empty reply")

// attemptResult is either a Turn (err == nil) or the error that ended an attempt.
type attemptResult struct {
	turn core.Turn
	err  error
}

func succeeded(turn core.Turn) attemptResult { return attemptResult{turn: turn} }

func failed(err error) attemptResult { return attemptResult{err: err} }

// orElse runs next only when r failed.
func (r attemptResult) orElse(next func(err error) attemptResult) attemptResult {
	if r.err == nil {
		return r
	}
	return next(r.err)
}

func (r attemptResult) turnOr(fallback core.Turn) core.Turn {
	if r.err != nil {
		return fallback
	}
	return r.turn
}
