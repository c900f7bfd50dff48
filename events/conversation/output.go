package conversation

// Output events: consumed by the avatar renderer and browser clients.

type UserMessageAddedEvent struct {
	Text       string `json:"text"`
	Expression string `json:"expression"`
}

func (*UserMessageAddedEvent) GetId() string {
	return "conversation.user_message_added"
}

type AssistantMessageAddedEvent struct {
	Text            string `json:"text"`
	Expression      string `json:"expression"`
	MouthDurationMs int64  `json:"mouth_duration_ms"` // Text length based, not the decoded audio length.
}

func (*AssistantMessageAddedEvent) GetId() string {
	return "conversation.assistant_message_added"
}

type UnitSpeakingEvent struct {
	Index            int    `json:"index"`
	Text             string `json:"text"`
	ApproxDurationMs int64  `json:"approx_duration_ms"`
}

func (*UnitSpeakingEvent) GetId() string {
	return "conversation.unit_speaking"
}

// Input events: fed to a session's event loop.

type SubmitTextEvent struct {
	Text string `json:"text"`
}

func (*SubmitTextEvent) GetId() string {
	return "conversation.submit_text"
}

// GestureEvent marks a qualifying user interaction (click/touch) that allows
// the audio device to be created.
type GestureEvent struct{}

func (*GestureEvent) GetId() string {
	return "conversation.gesture"
}

type TeardownEvent struct{}

func (*TeardownEvent) GetId() string {
	return "conversation.teardown"
}
