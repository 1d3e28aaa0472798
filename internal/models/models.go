package models

import "time"

// PipelineState represents the client-side pipeline position for one run.
type PipelineState string

const (
	StateIdle         PipelineState = "idle"
	StateConverting   PipelineState = "converting"
	StateUploading    PipelineState = "uploading"
	StateTranscribing PipelineState = "transcribing"
	StateReady        PipelineState = "ready"
	StateFailed       PipelineState = "failed"
)

// MediaAsset is an opaque media blob plus its MIME type. It enters the
// transcoder as raw video and leaves it as compact audio.
type MediaAsset struct {
	Data []byte
	MIME string
}

// VideoRecord is the server-side record created on upload. Transcription is
// nil until the transcription stage runs; it is set exactly once.
type VideoRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AudioPath     string    `json:"audio_path"`
	Transcription *string   `json:"transcription,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PromptTemplate is a catalog entry. Template may contain the literal
// {transcription} placeholder; it is immutable once fetched.
type PromptTemplate struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Template string `json:"template"`
}

// CompletionRequest carries one generation invocation.
type CompletionRequest struct {
	VideoID     string  `json:"videoId"`
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature"`
}

// ProgressEvent is sent to websocket subscribers of a video record.
type ProgressEvent struct {
	ID       string `json:"id"`
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
