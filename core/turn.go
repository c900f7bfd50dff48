package core

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message exchanged between user and assistant. Content is
// non-empty after trimming; turns are never mutated once appended to a history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RawTurn is a turn-like object as received from a client, before validation.
// Content is left untyped so non-string payloads can be detected and dropped.
type RawTurn struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ToRaw converts validated turns back to the client representation.
func ToRaw(turns []Turn) []RawTurn {
	raw := make([]RawTurn, len(turns))
	for i, t := range turns {
		raw[i] = RawTurn{Role: string(t.Role), Content: t.Content}
	}
	return raw
}
