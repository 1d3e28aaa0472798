// Package handlers exposes the HTTP surface: video upload, transcription,
// prompt listing and streamed AI completion.
package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"uploadai/internal/ai"
	"uploadai/internal/models"
	"uploadai/internal/prompt"
	"uploadai/internal/storage"
)

const defaultMaxUploadBytes = 100 * 1024 * 1024

type App struct {
	logger *slog.Logger

	router      *chi.Mux
	store       storage.Store
	transcriber ai.Transcriber
	generator   ai.Generator

	uploadsDir     string
	maxUploadBytes int64

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

func NewApp(logger *slog.Logger, store storage.Store, transcriber ai.Transcriber, generator ai.Generator, uploadsDir string, maxUploadBytes int64) *App {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	app := &App{
		logger:         logger,
		router:         chi.NewRouter(),
		store:          store,
		transcriber:    transcriber,
		generator:      generator,
		uploadsDir:     uploadsDir,
		maxUploadBytes: maxUploadBytes,
		subs:           make(map[string]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(45 * time.Minute))
	a.router.Use(a.corsMiddleware)

	a.router.Post("/videos", a.uploadVideo)
	a.router.Get("/videos/{id}", a.getVideo)
	a.router.Post("/videos/{id}/transcription", a.createTranscription)
	a.router.Post("/ai/complete", a.generateCompletion)
	a.router.Get("/prompts", a.listPrompts)
	a.router.Get("/ws/{id}", a.recordWS)
	a.router.Get("/healthz", a.health)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

// uploadVideo receives the transcoded audio as a single multipart payload and
// creates the video record. The response contract is just the assigned id, so
// storage can move to a different transport without changing callers.
func (a *App) uploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.logger.Warn("invalid multipart upload", "error", err)
		http.Error(w, "upload inválido ou maior que o limite", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "arquivo de áudio é obrigatório", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(a.uploadsDir, 0o755); err != nil {
		a.logger.Error("failed to ensure uploads dir", "error", err)
		http.Error(w, "erro interno ao preparar upload", http.StatusInternalServerError)
		return
	}

	safeName := sanitizeFileName(header.Filename)
	audioPath := filepath.Join(a.uploadsDir, newFileID()+"_"+safeName)

	out, err := os.Create(audioPath)
	if err != nil {
		a.logger.Error("failed to create upload file", "error", err)
		http.Error(w, "erro ao salvar upload", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		a.logger.Error("failed to persist upload", "error", err)
		http.Error(w, "erro ao gravar arquivo", http.StatusInternalServerError)
		return
	}

	record, err := a.store.CreateVideoRecord(r.Context(), safeName, audioPath)
	if err != nil {
		a.logger.Error("failed to create video record", "error", err)
		http.Error(w, "erro ao registrar vídeo", http.StatusInternalServerError)
		return
	}

	a.logger.Info("upload saved", "video_id", record.ID, "file", safeName)
	a.respondJSON(w, http.StatusCreated, map[string]string{"id": record.ID})
}

func (a *App) getVideo(w http.ResponseWriter, r *http.Request) {
	record, err := a.store.GetVideoRecord(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, models.ErrRecordNotFound) {
		http.Error(w, "vídeo não encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to fetch video record", "error", err)
		http.Error(w, "erro ao buscar vídeo", http.StatusInternalServerError)
		return
	}
	a.respondJSON(w, http.StatusOK, record)
}

type transcriptionRequest struct {
	// Prompt is a keyword hint for the speech-to-text provider, not the
	// generation prompt.
	Prompt string `json:"prompt"`
}

// createTranscription runs the speech-to-text pass and stores the result.
// Precondition: called exactly once per record; a second call overwrites the
// transcription and is a caller error.
func (a *App) createTranscription(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req transcriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "json inválido", http.StatusBadRequest)
		return
	}

	record, err := a.store.GetVideoRecord(r.Context(), videoID)
	if errors.Is(err, models.ErrRecordNotFound) {
		http.Error(w, "vídeo não encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to fetch video record", "error", err)
		http.Error(w, "erro ao buscar vídeo", http.StatusInternalServerError)
		return
	}

	a.broadcast(videoID, models.ProgressEvent{ID: videoID, Stage: "transcription", Status: "processing", Progress: 1, Message: "transcrevendo áudio"})

	text, err := a.transcriber.Transcribe(r.Context(), record.AudioPath, req.Prompt)
	if err != nil {
		a.logger.Error("transcription failed", "video_id", videoID, "error", err)
		a.broadcast(videoID, models.ProgressEvent{ID: videoID, Stage: "transcription", Status: "failed", Error: err.Error(), Message: "falha na transcrição"})
		http.Error(w, "falha na transcrição", http.StatusInternalServerError)
		return
	}

	if err := a.store.SetTranscription(r.Context(), videoID, text); err != nil {
		a.logger.Error("failed to store transcription", "video_id", videoID, "error", err)
		a.broadcast(videoID, models.ProgressEvent{ID: videoID, Stage: "transcription", Status: "failed", Error: err.Error(), Message: "falha ao gravar transcrição"})
		http.Error(w, "erro ao gravar transcrição", http.StatusInternalServerError)
		return
	}

	a.broadcast(videoID, models.ProgressEvent{ID: videoID, Stage: "transcription", Status: "completed", Progress: 100, Message: "transcrição concluída"})
	a.logger.Info("transcription completed", "video_id", videoID, "chars", len(text))
	w.WriteHeader(http.StatusOK)
}

// generateCompletion resolves the prompt against the stored transcription and
// streams the completion chunk by chunk.
func (a *App) generateCompletion(w http.ResponseWriter, r *http.Request) {
	var req models.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "json inválido", http.StatusBadRequest)
		return
	}

	if err := ai.ValidateTemperature(req.Temperature); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := a.store.GetVideoRecord(r.Context(), req.VideoID)
	if errors.Is(err, models.ErrRecordNotFound) {
		http.Error(w, "vídeo não encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to fetch video record", "error", err)
		http.Error(w, "erro ao buscar vídeo", http.StatusInternalServerError)
		return
	}
	if record.Transcription == nil {
		http.Error(w, "a transcrição do vídeo ainda não foi gerada", http.StatusBadRequest)
		return
	}

	resolved := prompt.Resolve(req.Prompt, *record.Transcription)

	stream, err := a.generator.Generate(r.Context(), resolved, req.Temperature)
	if err != nil {
		var invalid *models.InvalidParameterError
		if errors.As(err, &invalid) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.logger.Error("generation failed", "video_id", req.VideoID, "error", err)
		http.Error(w, "falha ao gerar resultado", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming não suportado", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Status already went out; abort the connection so the caller
			// sees an error instead of a clean EOF on truncated output.
			a.logger.Error("generation failed mid-stream", "video_id", req.VideoID, "error", err)
			panic(http.ErrAbortHandler)
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			a.logger.Warn("client went away during completion", "video_id", req.VideoID, "error", err)
			return
		}
		flusher.Flush()
	}
}

func (a *App) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.store.ListPromptTemplates(r.Context())
	if err != nil {
		a.logger.Error("failed to list prompts", "error", err)
		http.Error(w, "erro ao listar prompts", http.StatusInternalServerError)
		return
	}
	if prompts == nil {
		prompts = []models.PromptTemplate{}
	}
	a.respondJSON(w, http.StatusOK, prompts)
}

// recordWS subscribes the caller to progress events for one video record.
func (a *App) recordWS(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if _, err := a.store.GetVideoRecord(r.Context(), videoID); err != nil {
		http.Error(w, "vídeo não encontrado", http.StatusNotFound)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	a.mu.Lock()
	if a.subs[videoID] == nil {
		a.subs[videoID] = make(map[*websocket.Conn]struct{})
	}
	a.subs[videoID][conn] = struct{}{}
	a.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	a.mu.Lock()
	delete(a.subs[videoID], conn)
	a.mu.Unlock()
	_ = conn.Close()
}

func (a *App) broadcast(videoID string, evt models.ProgressEvent) {
	a.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(a.subs[videoID]))
	for c := range a.subs[videoID] {
		conns = append(conns, c)
	}
	a.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(evt); err != nil {
			a.mu.Lock()
			delete(a.subs[videoID], c)
			a.mu.Unlock()
			_ = c.Close()
		}
	}
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "audio.mp3"
	}
	return name
}

func newFileID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("up-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
