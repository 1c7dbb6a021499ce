package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fabricguide/internal/models"
)

// DefaultTitle names conversations before their first message.
const DefaultTitle = "Nieuw gesprek"

const maxTitleRunes = 48

// ConversationOptions configures a new conversation.
type ConversationOptions struct {
	Title    string
	Mode     models.Mode
	Provider string
	Model    string
	Search   bool
}

// CreateConversation inserts a new conversation and returns the record.
func (s *Service) CreateConversation(ctx context.Context, opts ConversationOptions) (*models.Conversation, error) {
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeLocal
	}
	if mode != models.ModeLocal && mode != models.ModeRemote {
		return nil, fmt.Errorf("invalid mode %q", mode)
	}
	if mode == models.ModeRemote && strings.TrimSpace(opts.Provider) == "" {
		return nil, errors.New("provider is required for remote mode")
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (title, mode, provider, model, search, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, string(mode), opts.Provider, opts.Model, opts.Search, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	return &models.Conversation{
		ID:        id,
		Title:     title,
		Mode:      mode,
		Provider:  opts.Provider,
		Model:     opts.Model,
		Search:    opts.Search,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const conversationColumns = `id, title, mode, provider, model, search, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c    models.Conversation
		mode string
	)
	if err := row.Scan(&c.ID, &c.Title, &mode, &c.Provider, &c.Model, &c.Search, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Mode = models.Mode(mode)
	return &c, nil
}

// ListConversations returns all conversations ordered by last activity.
func (s *Service) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY updated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation returns one conversation or sql.ErrNoRows.
func (s *Service) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// GetConversationWithMessages returns one conversation and its ordered messages.
func (s *Service) GetConversationWithMessages(ctx context.Context, id int64) (*models.Conversation, []*models.Message, error) {
	c, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.ListMessages(ctx, id)
	if err != nil {
		return c, nil, err
	}
	return c, messages, nil
}

// ListMessages returns the messages of a conversation, oldest first.
func (s *Service) ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var (
			m    models.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		parsed, err := models.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", m.ID, err)
		}
		m.Role = parsed
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// AddMessage stores a new message and updates the conversation's updated_at timestamp.
func (s *Service) AddMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	if !msg.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", msg.Role)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.ConversationID, string(msg.Role), msg.Content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, msg.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return &msg, nil
}

// AppendMessage validates and persists a message for an existing conversation.
// The first user message also becomes the conversation title.
func (s *Service) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	if conversationID <= 0 {
		return nil, errors.New("conversation_id is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("content cannot be empty")
	}
	if role == models.RoleUser {
		content = strings.TrimSpace(content)
	}
	var title string
	if err := s.db.QueryRowContext(ctx,
		`SELECT title FROM conversations WHERE id = ?`, conversationID,
	).Scan(&title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("verify conversation: %w", err)
	}

	msg, err := s.AddMessage(ctx, models.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}
	if role == models.RoleUser && title == DefaultTitle {
		if err := s.UpdateConversationTitle(ctx, conversationID, TitleFrom(content)); err != nil {
			s.logger.Warn("set conversation title failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		}
	}
	return msg, nil
}

// TitleFrom derives a short conversation title from the first question.
func TitleFrom(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxTitleRunes {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}

// DeleteConversation removes a conversation and all related messages.
func (s *Service) DeleteConversation(ctx context.Context, id int64) (err error) {
	if id <= 0 {
		return errors.New("invalid conversation id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete conversation: %w", err)
	}
	return nil
}

// UpdateConversationTitle sets a conversation title.
func (s *Service) UpdateConversationTitle(ctx context.Context, id int64, title string) error {
	if id <= 0 {
		return errors.New("invalid conversation id")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title cannot be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ?`,
		title, id,
	)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
