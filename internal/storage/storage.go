// Package storage persists video records and the prompt template catalog.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"uploadai/internal/models"
)

// Store is the storage collaborator the pipeline depends on. Implementations
// must return models.ErrRecordNotFound for unknown ids.
type Store interface {
	// CreateVideoRecord registers an uploaded audio file and assigns the
	// durable record id.
	CreateVideoRecord(ctx context.Context, name, audioPath string) (*models.VideoRecord, error)
	GetVideoRecord(ctx context.Context, id string) (*models.VideoRecord, error)
	// SetTranscription writes the transcription field. Callers must invoke it
	// exactly once per record; there is no guard against a second write.
	SetTranscription(ctx context.Context, id, text string) error
	ListPromptTemplates(ctx context.Context) ([]models.PromptTemplate, error)
	Close()
}

// seedPrompts is the initial template catalog served by GET /prompts.
var seedPrompts = []models.PromptTemplate{
	{
		Title: "Título do YouTube",
		Template: "Gere três títulos curtos e chamativos para um vídeo do YouTube a partir da transcrição abaixo. " +
			"Os títulos devem ter no máximo 60 caracteres cada.\n\nTranscrição:\n'''\n{transcription}\n'''",
	},
	{
		Title: "Descrição do YouTube",
		Template: "Gere uma descrição sucinta para um vídeo do YouTube a partir da transcrição abaixo. " +
			"Comece com um resumo de dois parágrafos e termine com uma lista de três hashtags relevantes.\n\nTranscrição:\n'''\n{transcription}\n'''",
	},
	{
		Title: "Resumo",
		Template: "Resuma em um parágrafo o conteúdo da transcrição abaixo.\n\nTranscrição:\n'''\n{transcription}\n'''",
	},
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("id-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
