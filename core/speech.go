package core

// SpeechUnit is one segmented sentence. Index is the required playback
// position within its assistant Turn.
type SpeechUnit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SynthesisResult is the outcome of synthesizing one unit. A nil Buffer means
// synthesis failed and the unit is skipped during playback.
type SynthesisResult struct {
	Unit   SpeechUnit
	Buffer *AudioBuffer
}

func (r SynthesisResult) Index() int {
	return r.Unit.Index
}

func (r SynthesisResult) Failed() bool {
	return r.Buffer == nil
}
