package worker

import (
	"context"

	"fabricguide/internal/models"
)

// JobType distinguishes work items from control messages.
type JobType string

const (
	Turn JobType = "turn"
	Stop JobType = "stop"
)

// Job is what the dispatcher hands to a pooled worker.
type Job struct {
	Type JobType
	Turn *turnTask
}

type turnTask struct {
	ctx          context.Context
	conversation *models.Conversation
	history      []*models.Message
	user         *models.Message
	resultCh     chan turnResult
}

type turnResult struct {
	reply    *models.Message
	fallback bool
	err      error
}

func (job Job) conversationID() int64 {
	if job.Type == Turn && job.Turn != nil && job.Turn.conversation != nil {
		return job.Turn.conversation.ID
	}
	return 0
}

// turnHandler runs turns on behalf of the pool's workers.
type turnHandler interface {
	handleTurn(task *turnTask)
	abortTurn(task *turnTask, err error)
}
