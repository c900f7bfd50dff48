package capture

const (
	MIC_UNAVAILABLE_MESSAGE      = "Không thể truy cập microphone. Vui lòng kiểm tra quyền truy cập."
	TRANSCRIPTION_FAILED_MESSAGE = "Không thể chuyển đổi giọng nói thành văn bản. Vui lòng thử lại."
)

// DefaultMaxRecordingBytes bounds the memory held by one recording.
const DefaultMaxRecordingBytes = 16 << 20

const DefaultRecordingFileName = "recording.webm"
