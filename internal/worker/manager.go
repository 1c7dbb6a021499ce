package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fabricguide/internal/config"
	"fabricguide/internal/models"
	"fabricguide/internal/redis"
	"fabricguide/internal/service/ai"
)

var (
	// ErrEmptyInput is returned for blank user input; nothing is stored.
	ErrEmptyInput = errors.New("input is empty")
	// ErrTurnInProgress is returned while the conversation awaits a reply.
	ErrTurnInProgress = errors.New("a reply is already being generated for this conversation")
	// ErrManagerClosed is returned once Close has been called.
	ErrManagerClosed = errors.New("turn manager is closed")
)

// Store is the persistence the manager needs.
type Store interface {
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error)
	AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error)
	ActiveSnippets(ctx context.Context) ([]*models.KnowledgeSnippet, error)
}

// Responder answers locally without any network call.
type Responder interface {
	Reply(ctx context.Context, history []*models.Message, input string) (string, error)
}

// ClientSource hands out remote completion clients.
type ClientSource interface {
	Client(ctx context.Context, provider, model string) (ai.Client, error)
}

// Options tune the manager.
type Options struct {
	Workers    config.WorkerConfig
	ReplyDelay time.Duration
	Cache      *redis.Client
	Logger     *zap.Logger
}

// TurnRequest is one user submission.
type TurnRequest struct {
	Context        context.Context
	ConversationID int64
	Content        string
	// AckFn is called once the user message is stored, before the reply exists.
	AckFn func(*models.Message) error
}

// TurnResult is the outcome of an accepted turn.
type TurnResult struct {
	User     *models.Message `json:"user"`
	Reply    *models.Message `json:"reply"`
	Fallback bool            `json:"fallback"`
}

// Manager owns the per-conversation turn state machine and runs replies on a
// pooled set of workers.
type Manager struct {
	store      Store
	local      Responder
	remote     ClientSource
	replyDelay time.Duration
	logger     *zap.Logger

	state      *conversationState
	cache      *historyCache
	dispatcher *Dispatcher

	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewManager starts the dispatcher and, when a redis client is given, the
// cache invalidation listener.
func NewManager(store Store, local Responder, remote ClientSource, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:      store,
		local:      local,
		remote:     remote,
		replyDelay: opts.ReplyDelay,
		logger:     logger,
		state:      newConversationState(),
		cache:      newHistoryCache(opts.Cache, logger),
		closed:     make(chan struct{}),
		cancel:     cancel,
	}
	m.dispatcher = NewDispatcher(opts.Workers.MinWorkers, opts.Workers.MaxWorkers, opts.Workers.QueueSize, opts.Workers.IdleTimeout, m, logger)
	if err := m.cache.listen(ctx, m.state.dropHistory); err != nil {
		logger.Warn("history invalidation listener disabled", zap.Error(err))
	}
	return m
}

// Send stores the user message, acknowledges it, and waits for the reply.
func (m *Manager) Send(req TurnRequest) (*TurnResult, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyInput
	}
	select {
	case <-m.closed:
		return nil, ErrManagerClosed
	default:
	}
	if !m.state.begin(req.ConversationID) {
		return nil, ErrTurnInProgress
	}

	conv, history, err := m.prepare(ctx, req.ConversationID)
	if err != nil {
		m.state.finish(req.ConversationID)
		return nil, err
	}
	userMsg, err := m.store.AppendMessage(ctx, conv.ID, models.RoleUser, content)
	if err != nil {
		m.state.finish(conv.ID)
		return nil, fmt.Errorf("store user message: %w", err)
	}
	m.state.appendHistory(conv.ID, userMsg)
	if req.AckFn != nil {
		if err := req.AckFn(userMsg); err != nil {
			m.logger.Warn("ack failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
		}
	}
	m.state.setTyping(conv.ID, true)

	task := &turnTask{
		ctx:          context.WithoutCancel(ctx),
		conversation: conv,
		history:      history,
		user:         userMsg,
		resultCh:     make(chan turnResult, 1),
	}
	if err := m.dispatcher.Submit(Job{Type: Turn, Turn: task}); err != nil {
		m.logger.Warn("turn rejected", zap.Int64("conversation_id", conv.ID), zap.Error(err))
		m.complete(task, ai.FallbackReply, true)
		res := <-task.resultCh
		return &TurnResult{User: userMsg, Reply: res.reply, Fallback: true}, err
	}

	select {
	case res := <-task.resultCh:
		if res.err != nil {
			return &TurnResult{User: userMsg}, res.err
		}
		return &TurnResult{User: userMsg, Reply: res.reply, Fallback: res.fallback}, nil
	case <-ctx.Done():
		return &TurnResult{User: userMsg}, ctx.Err()
	case <-m.closed:
		return &TurnResult{User: userMsg}, ErrManagerClosed
	}
}

// prepare loads the conversation and its history before the new input.
func (m *Manager) prepare(ctx context.Context, id int64) (*models.Conversation, []*models.Message, error) {
	conv, err := m.store.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if history, ok := m.state.getHistory(id); ok {
		return conv, history, nil
	}
	if history, ok := m.cache.load(ctx, id); ok {
		m.state.setHistory(id, history)
		return conv, history, nil
	}
	history, err := m.store.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	m.state.setHistory(id, history)
	return conv, history, nil
}

func (m *Manager) handleTurn(task *turnTask) {
	conv := task.conversation
	debugLog(m.logger, "turn start", zap.Int64("conversation_id", conv.ID), zap.String("mode", string(conv.Mode)))

	var (
		reply    string
		fallback bool
	)
	switch conv.Mode {
	case models.ModeRemote:
		reply, fallback = m.remoteReply(task)
	default:
		if !m.wait(m.replyDelay) {
			m.abortTurn(task, ErrManagerClosed)
			return
		}
		var err error
		reply, err = m.local.Reply(task.ctx, task.history, task.user.Content)
		if err != nil {
			m.logger.Error("local reply failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
			reply, fallback = ai.FallbackReply, true
		}
	}
	m.complete(task, reply, fallback)
}

func (m *Manager) remoteReply(task *turnTask) (string, bool) {
	conv := task.conversation
	ctx := ai.WithConversation(task.ctx, conv.ID)

	client, err := m.remote.Client(ctx, conv.Provider, conv.Model)
	if err != nil {
		m.logger.Error("remote client unavailable",
			zap.Int64("conversation_id", conv.ID),
			zap.String("provider", conv.Provider),
			zap.Error(err),
		)
		return ai.FallbackReply, true
	}
	snippets, err := m.store.ActiveSnippets(ctx)
	if err != nil {
		m.logger.Warn("load snippets failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
		snippets = nil
	}
	reply, err := client.Generate(ctx, ai.Request{
		History:  task.history,
		Input:    task.user.Content,
		Snippets: snippets,
		Search:   conv.Search,
	})
	if err != nil {
		m.logger.Error("remote reply failed",
			zap.Int64("conversation_id", conv.ID),
			zap.String("provider", conv.Provider),
			zap.Error(err),
		)
		return ai.FallbackReply, true
	}
	return reply, false
}

// complete stores the reply, returns the conversation to Idle, and delivers
// the result. The state is released before the result is sent so the caller
// can start the next turn immediately.
func (m *Manager) complete(task *turnTask, reply string, fallback bool) {
	conv := task.conversation
	msg, err := m.store.AppendMessage(task.ctx, conv.ID, models.RoleAssistant, reply)
	if err != nil {
		m.state.dropHistory(conv.ID)
		m.state.finish(conv.ID)
		task.resultCh <- turnResult{err: fmt.Errorf("store reply: %w", err)}
		return
	}
	m.state.appendHistory(conv.ID, msg)
	if history, ok := m.state.getHistory(conv.ID); ok {
		m.cache.store(task.ctx, conv.ID, history)
	}
	m.state.finish(conv.ID)
	debugLog(m.logger, "turn done", zap.Int64("conversation_id", conv.ID), zap.Bool("fallback", fallback))
	task.resultCh <- turnResult{reply: msg, fallback: fallback}
}

func (m *Manager) abortTurn(task *turnTask, err error) {
	if task == nil {
		return
	}
	m.state.finish(task.conversation.ID)
	task.resultCh <- turnResult{err: err}
}

func (m *Manager) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.closed:
		return false
	}
}

// Typing reports whether a reply is being generated for the conversation.
func (m *Manager) Typing(conversationID int64) bool {
	return m.state.isTyping(conversationID)
}

// Phase reports the turn state of the conversation.
func (m *Manager) Phase(conversationID int64) Phase {
	return m.state.phase(conversationID)
}

// Purge drops cached state of a conversation, e.g. after it was deleted.
func (m *Manager) Purge(conversationID int64) {
	m.state.dropHistory(conversationID)
	m.cache.invalidate(context.Background(), conversationID)
}

// Close stops the workers. Pending turns fail with ErrManagerClosed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.cancel()
		m.dispatcher.Close()
		m.state.reset()
	})
}
