package capture

type StartRecordingEvent struct{}

func (*StartRecordingEvent) GetId() string {
	return "capture.start_recording"
}

type StopRecordingEvent struct{}

func (*StopRecordingEvent) GetId() string {
	return "capture.stop_recording"
}

type CaptureStateChangedEvent struct {
	State string `json:"state"` // "idle", "recording" or "processing"
}

func (*CaptureStateChangedEvent) GetId() string {
	return "capture.state_changed"
}

// CaptureFailedEvent is a user-visible alert.
type CaptureFailedEvent struct {
	Kind    string `json:"kind"` // "capture" or "transcription"
	Message string `json:"message"`
}

func (*CaptureFailedEvent) GetId() string {
	return "capture.failed"
}

type InputBufferUpdatedEvent struct {
	Text string `json:"text"`
}

func (*InputBufferUpdatedEvent) GetId() string {
	return "capture.input_buffer_updated"
}
