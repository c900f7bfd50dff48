package chat

import (
	"context"
	"errors"

	"avatarvoice/core"
)

// Completer is what ChatHandler needs from a ChatCompletionClient.
type Completer interface {
	Complete(ctx context.Context, history []core.Turn, username string) core.Turn
	Persona() Persona
}

// ChatHandler answers a raw, client-supplied history with one assistant Turn.
type ChatHandler struct {
	validator *MessageValidator
	completer Completer
	logger    *core.Logger
}

func NewChatHandler(completer Completer, logger *core.Logger) *ChatHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ChatHandler{
		validator: NewMessageValidator(logger),
		completer: completer,
		logger:    logger,
	}
}

// Respond validates raw and completes it. A history with no valid turn gets
// the persona's clarification reply without any model call.
func (h *ChatHandler) Respond(ctx context.Context, raw []core.RawTurn, username string) core.Turn {
	turns, err := h.validator.Validate(raw)
	if errors.Is(err, core.ErrEmptyConversation) {
		core.LoggerFromContext(ctx, h.logger).Info("empty conversation, sending clarification")
		return core.AssistantTurn(h.completer.Persona().Clarification(username))
	}
	return h.completer.Complete(ctx, turns, username)
}
