package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fabricguide/internal/models"
)

// CreateSnippet stores a new knowledge snippet. New snippets start active.
func (s *Service) CreateSnippet(ctx context.Context, title, body string) (*models.KnowledgeSnippet, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, errors.New("title is required")
	}
	if body == "" {
		return nil, errors.New("body is required")
	}
	snippet := &models.KnowledgeSnippet{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (id, title, body, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		snippet.ID, snippet.Title, snippet.Body, snippet.Active, snippet.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("create snippet: %w", err)
	}
	return snippet, nil
}

// ListSnippets returns every snippet in creation order.
func (s *Service) ListSnippets(ctx context.Context) ([]*models.KnowledgeSnippet, error) {
	return s.querySnippets(ctx, `SELECT id, title, body, active, created_at FROM snippets ORDER BY created_at ASC, id ASC`)
}

// ActiveSnippets returns the snippets currently sent along with remote requests.
func (s *Service) ActiveSnippets(ctx context.Context) ([]*models.KnowledgeSnippet, error) {
	return s.querySnippets(ctx, `SELECT id, title, body, active, created_at FROM snippets WHERE active = 1 ORDER BY created_at ASC, id ASC`)
}

func (s *Service) querySnippets(ctx context.Context, query string) ([]*models.KnowledgeSnippet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []*models.KnowledgeSnippet
	for rows.Next() {
		var sn models.KnowledgeSnippet
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Body, &sn.Active, &sn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		snippets = append(snippets, &sn)
	}
	return snippets, rows.Err()
}

// GetSnippet returns one snippet or sql.ErrNoRows.
func (s *Service) GetSnippet(ctx context.Context, id string) (*models.KnowledgeSnippet, error) {
	var sn models.KnowledgeSnippet
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, active, created_at FROM snippets WHERE id = ?`, id,
	).Scan(&sn.ID, &sn.Title, &sn.Body, &sn.Active, &sn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get snippet: %w", err)
	}
	return &sn, nil
}

// SetSnippetActive switches a snippet on or off.
func (s *Service) SetSnippetActive(ctx context.Context, id string, active bool) (*models.KnowledgeSnippet, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE snippets SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("snippet rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}
	return s.GetSnippet(ctx, id)
}

// ToggleSnippet flips the active flag of a snippet.
func (s *Service) ToggleSnippet(ctx context.Context, id string) (*models.KnowledgeSnippet, error) {
	current, err := s.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SetSnippetActive(ctx, id, !current.Active)
}

// DeleteSnippet removes a snippet.
func (s *Service) DeleteSnippet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("snippet rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
