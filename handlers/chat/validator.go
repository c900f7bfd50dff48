package chat

import (
	"strings"

	"avatarvoice/core"
)

// MessageValidator filters client-supplied history down to well-formed turns.
type MessageValidator struct {
	logger *core.Logger
}

func NewMessageValidator(logger *core.Logger) *MessageValidator {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &MessageValidator{logger: logger}
}

// Validate keeps, in order, every entry whose role is user or assistant and
// whose content is a string that is non-empty after trimming. Dropped entries
// are logged, not reported. It fails with core.ErrEmptyConversation only when
// nothing survives.
func (v *MessageValidator) Validate(raw []core.RawTurn) ([]core.Turn, error) {
	turns := make([]core.Turn, 0, len(raw))
	for i, entry := range raw {
		turn, ok := normalizeTurn(entry)
		if !ok {
			v.logger.Debug("dropping malformed turn", "position", i, "role", entry.Role)
			continue
		}
		turns = append(turns, turn)
	}
	if len(turns) == 0 {
		return nil, core.ErrEmptyConversation
	}
	return turns, nil
}

func normalizeTurn(entry core.RawTurn) (core.Turn, bool) {
	role := core.Role(strings.ToLower(strings.TrimSpace(entry.Role)))
	if role != core.RoleUser && role != core.RoleAssistant {
		return core.Turn{}, false
	}
	content, ok := entry.Content.(string)
	if !ok {
		return core.Turn{}, false
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return core.Turn{}, false
	}
	return core.Turn{Role: role, Content: content}, true
}
