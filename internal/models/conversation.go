package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how replies are produced for a conversation.
type Mode string

const (
	// ModeLocal answers from the built-in keyword rule table.
	ModeLocal Mode = "local"
	// ModeRemote delegates to an external chat-completion provider.
	ModeRemote Mode = "remote"
)

// ParseMode validates a mode string; empty defaults to ModeLocal.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeLocal:
		return ModeLocal, nil
	case ModeRemote:
		return ModeRemote, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// Conversation groups the ordered messages of one guide panel.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Search    bool      `json:"search"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
