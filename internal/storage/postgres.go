package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"uploadai/internal/models"
)

// PostgresStore persists records and prompt templates in Postgres. Selected
// by setting DATABASE_URL.
type PostgresStore struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := &PostgresStore{logger: logger, pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("postgres store ready")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			audio_path TEXT NOT NULL,
			transcription TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			template TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return s.seedPrompts(ctx)
}

func (s *PostgresStore) seedPrompts(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prompts`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count prompts: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range seedPrompts {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO prompts (id, title, template) VALUES ($1, $2, $3)`,
			newID(), p.Title, p.Template,
		); err != nil {
			return fmt.Errorf("failed to seed prompts: %w", err)
		}
	}
	s.logger.Info("prompt catalog seeded", "count", len(seedPrompts))
	return nil
}

func (s *PostgresStore) CreateVideoRecord(ctx context.Context, name, audioPath string) (*models.VideoRecord, error) {
	record := &models.VideoRecord{
		ID:        newID(),
		Name:      name,
		AudioPath: audioPath,
		CreatedAt: time.Now(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO videos (id, name, audio_path, created_at) VALUES ($1, $2, $3, $4)`,
		record.ID, record.Name, record.AudioPath, record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert video record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetVideoRecord(ctx context.Context, id string) (*models.VideoRecord, error) {
	record := &models.VideoRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, audio_path, transcription, created_at FROM videos WHERE id = $1`, id,
	).Scan(&record.ID, &record.Name, &record.AudioPath, &record.Transcription, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) SetTranscription(ctx context.Context, id, text string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET transcription = $2 WHERE id = $1`, id, text,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) ListPromptTemplates(ctx context.Context) ([]models.PromptTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, template FROM prompts ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.PromptTemplate
	for rows.Next() {
		var p models.PromptTemplate
		if err := rows.Scan(&p.ID, &p.Title, &p.Template); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return prompts, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
