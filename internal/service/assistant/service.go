package assistant

import (
	"database/sql"

	"go.uber.org/zap"
)

// Service persists conversations, their messages and knowledge snippets.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService builds a new assistant service.
func NewService(db *sql.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}
