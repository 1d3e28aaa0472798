package storage

import (
	"context"
	"sync"
	"time"

	"uploadai/internal/models"
)

// MemoryStore keeps records in a mutex-guarded map. It is the default backend
// and the one the tests run against.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.VideoRecord
	prompts []models.PromptTemplate
}

func NewMemoryStore() *MemoryStore {
	prompts := make([]models.PromptTemplate, len(seedPrompts))
	copy(prompts, seedPrompts)
	for i := range prompts {
		prompts[i].ID = newID()
	}
	return &MemoryStore{
		records: make(map[string]*models.VideoRecord),
		prompts: prompts,
	}
}

func (s *MemoryStore) CreateVideoRecord(ctx context.Context, name, audioPath string) (*models.VideoRecord, error) {
	record := &models.VideoRecord{
		ID:        newID(),
		Name:      name,
		AudioPath: audioPath,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	clone := *record
	return &clone, nil
}

func (s *MemoryStore) GetVideoRecord(ctx context.Context, id string) (*models.VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) SetTranscription(ctx context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return models.ErrRecordNotFound
	}
	record.Transcription = &text
	return nil
}

func (s *MemoryStore) ListPromptTemplates(ctx context.Context) ([]models.PromptTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PromptTemplate, len(s.prompts))
	copy(out, s.prompts)
	return out, nil
}

func (s *MemoryStore) Close() {}
