package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"uploadai/internal/models"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record, err := store.CreateVideoRecord(ctx, "audio.mp3", "/tmp/audio.mp3")
	if err != nil {
		t.Fatalf("CreateVideoRecord error: %v", err)
	}
	if record.ID == "" {
		t.Fatal("record id is empty")
	}
	if record.Transcription != nil {
		t.Error("fresh record should have nil transcription")
	}

	got, err := store.GetVideoRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetVideoRecord error: %v", err)
	}
	if got.Name != "audio.mp3" || got.AudioPath != "/tmp/audio.mp3" {
		t.Errorf("record = %+v, fields lost", got)
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetVideoRecord(context.Background(), "missing"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("GetVideoRecord(missing) = %v, want ErrRecordNotFound", err)
	}
}

func TestMemoryStoreSetTranscription(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record, _ := store.CreateVideoRecord(ctx, "audio.mp3", "/tmp/audio.mp3")
	if err := store.SetTranscription(ctx, record.ID, "olá mundo"); err != nil {
		t.Fatalf("SetTranscription error: %v", err)
	}

	got, _ := store.GetVideoRecord(ctx, record.ID)
	if got.Transcription == nil || *got.Transcription != "olá mundo" {
		t.Errorf("transcription = %v, want set", got.Transcription)
	}

	if err := store.SetTranscription(ctx, "missing", "x"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("SetTranscription(missing) = %v, want ErrRecordNotFound", err)
	}
}

func TestMemoryStoreReturnsClones(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record, _ := store.CreateVideoRecord(ctx, "audio.mp3", "/tmp/audio.mp3")
	record.Name = "mutated"

	got, _ := store.GetVideoRecord(ctx, record.ID)
	if got.Name != "audio.mp3" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemoryStoreSeedsPromptCatalog(t *testing.T) {
	store := NewMemoryStore()

	prompts, err := store.ListPromptTemplates(context.Background())
	if err != nil {
		t.Fatalf("ListPromptTemplates error: %v", err)
	}
	if len(prompts) == 0 {
		t.Fatal("prompt catalog is empty")
	}
	seen := map[string]bool{}
	for _, p := range prompts {
		if p.ID == "" {
			t.Errorf("prompt %q has no id", p.Title)
		}
		if seen[p.ID] {
			t.Errorf("duplicate prompt id %s", p.ID)
		}
		seen[p.ID] = true
		if !strings.Contains(p.Template, "{transcription}") {
			t.Errorf("seed template %q has no placeholder", p.Title)
		}
	}
}
