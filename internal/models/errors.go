package models

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned by storage when a video id is unknown.
var ErrRecordNotFound = errors.New("video record not found")

// TranscodeError wraps failures from the media transcoder: unusable input or
// an unavailable ffmpeg engine.
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string { return "transcode: " + e.Err.Error() }
func (e *TranscodeError) Unwrap() error { return e.Err }

// UploadError wraps transport or size failures while moving audio to storage.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "upload: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// TranscriptionError wraps speech-to-text provider failures and unknown
// records during the transcription stage.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return "transcription: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError wraps text-generation provider failures, including failures
// that surface mid-stream.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// InvalidParameterError reports a request parameter rejected before any
// provider call is made.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}
