package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"uploadai/internal/models"
)

// Client talks to the server's HTTP surface on behalf of the pipeline.
type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client-wide timeout: completions stream for as long as the
		// provider keeps producing. Callers bound each call with ctx.
		hc: &http.Client{},
	}
}

// Upload sends the audio asset as a single multipart payload and returns the
// record id assigned by storage.
func (c *Client) Upload(ctx context.Context, audio models.MediaAsset, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &models.UploadError{Err: err}
	}
	if _, err := fw.Write(audio.Data); err != nil {
		return "", &models.UploadError{Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &models.UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", &body)
	if err != nil {
		return "", &models.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &models.UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", &models.UploadError{Err: httpError(resp)}
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &models.UploadError{Err: err}
	}
	if payload.ID == "" {
		return "", &models.UploadError{Err: fmt.Errorf("server returned empty id")}
	}
	return payload.ID, nil
}

// CreateTranscription triggers the speech-to-text pass for a record. The
// keyword prompt is forwarded as a recognition hint.
func (c *Client) CreateTranscription(ctx context.Context, videoID, keywordPrompt string) error {
	payload, err := json.Marshal(map[string]string{"prompt": keywordPrompt})
	if err != nil {
		return &models.TranscriptionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos/"+videoID+"/transcription", bytes.NewReader(payload))
	if err != nil {
		return &models.TranscriptionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return &models.TranscriptionError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return &models.TranscriptionError{Err: models.ErrRecordNotFound}
	default:
		return &models.TranscriptionError{Err: httpError(resp)}
	}
}

// GetVideo fetches a record, transcription included once generated.
func (c *Client) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+videoID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrRecordNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}

	var record models.VideoRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPrompts fetches the template catalog.
func (c *Client) ListPrompts(ctx context.Context) ([]models.PromptTemplate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prompts", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}

	var prompts []models.PromptTemplate
	if err := json.NewDecoder(resp.Body).Decode(&prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

// Complete starts a streamed completion. The returned body delivers chunks as
// the provider produces them; the caller owns it and must close it.
func (c *Client) Complete(ctx context.Context, request models.CompletionRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &models.GenerationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/complete", bytes.NewReader(payload))
	if err != nil {
		return nil, &models.GenerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &models.GenerationError{Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusBadRequest:
		err := httpError(resp)
		resp.Body.Close()
		return nil, &models.InvalidParameterError{Name: "request", Reason: err.Error()}
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, &models.GenerationError{Err: models.ErrRecordNotFound}
	default:
		err := httpError(resp)
		resp.Body.Close()
		return nil, &models.GenerationError{Err: err}
	}
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg)
}
