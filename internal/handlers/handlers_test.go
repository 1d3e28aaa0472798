package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"uploadai/internal/ai"
	"uploadai/internal/models"
	"uploadai/internal/storage"
)

func newTestServer(t *testing.T, transcriber ai.Transcriber, generator ai.Generator) (*httptest.Server, storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	app := NewApp(logger, store, transcriber, generator, t.TempDir(), 0)
	ts := httptest.NewServer(app.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func uploadAudio(t *testing.T, ts *httptest.Server, data []byte) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.mp3")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file error: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer error: %v", err)
	}

	resp, err := http.Post(ts.URL+"/videos", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /videos error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST /videos status = %d, body %s", resp.StatusCode, raw)
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("upload returned empty id")
	}
	return payload.ID
}

func createTranscription(t *testing.T, ts *httptest.Server, videoID, hint string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"prompt": hint})
	resp, err := http.Post(ts.URL+"/videos/"+videoID+"/transcription", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST transcription error: %v", err)
	}
	return resp
}

func complete(t *testing.T, ts *httptest.Server, req models.CompletionRequest) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+"/ai/complete", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /ai/complete error: %v", err)
	}
	return resp
}

func TestUploadCreatesRecord(t *testing.T) {
	ts, store := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})

	id := uploadAudio(t, ts, []byte("mp3-bytes"))

	record, err := store.GetVideoRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVideoRecord error: %v", err)
	}
	if record.Transcription != nil {
		t.Error("fresh record should have no transcription")
	}
	if record.AudioPath == "" {
		t.Error("record has no audio path")
	}
}

func TestUploadRequiresFile(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/videos", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /videos error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscriptionSetsRecordText(t *testing.T) {
	ts, store := newTestServer(t, ai.MockTranscriber{Text: "hello world"}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))

	resp := createTranscription(t, ts, id, "palavra-chave")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	record, err := store.GetVideoRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVideoRecord error: %v", err)
	}
	if record.Transcription == nil || *record.Transcription != "hello world" {
		t.Errorf("transcription = %v, want %q", record.Transcription, "hello world")
	}
}

func TestTranscriptionEmptySpeechIsNotAnError(t *testing.T) {
	ts, store := newTestServer(t, ai.MockTranscriber{Text: ""}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))

	resp := createTranscription(t, ts, id, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for silent audio", resp.StatusCode)
	}

	record, _ := store.GetVideoRecord(context.Background(), id)
	if record.Transcription == nil {
		t.Fatal("empty transcription should still be set")
	}
	if *record.Transcription != "" {
		t.Errorf("transcription = %q, want empty", *record.Transcription)
	}
}

func TestTranscriptionUnknownVideo(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})
	resp := createTranscription(t, ts, "missing", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTranscriptionProviderFailure(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{Err: errors.New("provider down")}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))

	resp := createTranscription(t, ts, id, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCompletionResolvesTemplateServerSide(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{Text: "hello world"}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))
	createTranscription(t, ts, id, "").Body.Close()

	resp := complete(t, ts, models.CompletionRequest{
		VideoID:     id,
		Prompt:      "Summarize: {transcription}",
		Temperature: 0.5,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("stream read error: %v", err)
	}
	// The mock generator echoes the resolved prompt, so the concatenated
	// stream proves the substitution happened server-side.
	if string(out) != "Summarize: hello world" {
		t.Errorf("stream = %q, want resolved prompt", out)
	}
}

func TestCompletionTemperatureBoundaries(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{Text: "hello"}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))
	createTranscription(t, ts, id, "").Body.Close()

	cases := []struct {
		temperature float32
		wantStatus  int
	}{
		{-0.1, http.StatusBadRequest},
		{1.1, http.StatusBadRequest},
		{0.0, http.StatusOK},
		{1.0, http.StatusOK},
	}
	for _, c := range cases {
		resp := complete(t, ts, models.CompletionRequest{VideoID: id, Prompt: "p", Temperature: c.temperature})
		if resp.StatusCode != c.wantStatus {
			t.Errorf("temperature %g: status = %d, want %d", c.temperature, resp.StatusCode, c.wantStatus)
		}
		resp.Body.Close()
	}
}

func TestCompletionUnknownVideo(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})
	resp := complete(t, ts, models.CompletionRequest{VideoID: "missing", Prompt: "p", Temperature: 0.5})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCompletionRequiresTranscription(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})
	id := uploadAudio(t, ts, []byte("mp3-bytes"))

	resp := complete(t, ts, models.CompletionRequest{VideoID: id, Prompt: "p", Temperature: 0.5})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 before transcription exists", resp.StatusCode)
	}
}

func TestCompletionMidStreamFailureBreaksConnection(t *testing.T) {
	generator := ai.MockGenerator{Err: errors.New("provider died"), FailAfter: 2}
	ts, _ := newTestServer(t, ai.MockTranscriber{Text: "one two three four five"}, generator)
	id := uploadAudio(t, ts, []byte("mp3-bytes"))
	createTranscription(t, ts, id, "").Body.Close()

	resp := complete(t, ts, models.CompletionRequest{VideoID: id, Prompt: "{transcription}", Temperature: 0.5})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 before the stream breaks", resp.StatusCode)
	}

	if _, err := io.ReadAll(resp.Body); err == nil {
		t.Error("expected a read error distinguishing failure from normal stream end")
	}
}

func TestListPrompts(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})

	resp, err := http.Get(ts.URL + "/prompts")
	if err != nil {
		t.Fatalf("GET /prompts error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var prompts []models.PromptTemplate
	if err := json.NewDecoder(resp.Body).Decode(&prompts); err != nil {
		t.Fatalf("decode prompts: %v", err)
	}
	if len(prompts) == 0 {
		t.Fatal("prompt catalog is empty")
	}
	for _, p := range prompts {
		if p.ID == "" || p.Title == "" {
			t.Errorf("prompt missing id or title: %+v", p)
		}
		if !strings.Contains(p.Template, "{transcription}") {
			t.Errorf("seed template %q has no transcription placeholder", p.Title)
		}
	}
}

func TestGetVideoNotFound(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})
	resp, err := http.Get(ts.URL + "/videos/missing")
	if err != nil {
		t.Fatalf("GET /videos/missing error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, ai.MockTranscriber{}, ai.MockGenerator{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/videos", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /videos error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
