package chat

import (
	"errors"
	"reflect"
	"testing"

	"avatarvoice/core"
)

func TestMessageValidatorFiltersMalformedTurns(t *testing.T) {
	v := NewMessageValidator(core.NewLogger(nil))

	raw := []core.RawTurn{
		{Role: "user", Content: "  Xin chào  "},
		{Role: "assistant", Content: ""},
		{Role: "user", Content: 42},
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: nil},
		{Role: "Assistant", Content: "Chào cậu!"},
		{Role: "user", Content: " \n "},
	}

	got, err := v.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []core.Turn{
		{Role: core.RoleUser, Content: "Xin chào"},
		{Role: core.RoleAssistant, Content: "Chào cậu!"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Validate() = %#v, want %#v", got, want)
	}
}

func TestMessageValidatorEmptyConversation(t *testing.T) {
	v := NewMessageValidator(core.NewLogger(nil))

	for _, raw := range [][]core.RawTurn{
		nil,
		{{Role: "user", Content: "   "}, {Role: "assistant", Content: map[string]interface{}{"text": "x"}}},
	} {
		if _, err := v.Validate(raw); !errors.Is(err, core.ErrEmptyConversation) {
			t.Fatalf("Validate(%v) error = %v, want ErrEmptyConversation", raw, err)
		}
	}
}
