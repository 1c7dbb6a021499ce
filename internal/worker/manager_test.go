package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"fabricguide/internal/config"
	"fabricguide/internal/models"
	"fabricguide/internal/service/ai"
	"fabricguide/internal/service/assistant"
	"fabricguide/internal/service/guide"
	"fabricguide/internal/storage"
)

func newTestStore(t *testing.T) *assistant.Service {
	t.Helper()
	db, err := storage.Open(config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return assistant.NewService(db, nil)
}

func newTestManager(t *testing.T, store Store, local Responder, remote ClientSource, workers config.WorkerConfig) *Manager {
	t.Helper()
	if workers.MaxWorkers == 0 {
		workers = config.WorkerConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 8}
	}
	m := NewManager(store, local, remote, Options{Workers: workers})
	t.Cleanup(m.Close)
	return m
}

func createConversation(t *testing.T, store *assistant.Service, opts assistant.ConversationOptions) *models.Conversation {
	t.Helper()
	conv, err := store.CreateConversation(context.Background(), opts)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func TestLocalTurnsAlternateUserAndAssistant(t *testing.T) {
	store := newTestStore(t)
	manager := newTestManager(t, store, guide.New(), nil, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{})

	inputs := []string{"Vertel over stap 1", "Wat doet de golden layer?", "Hoe zit het met AVG?"}
	for _, input := range inputs {
		res, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: input})
		if err != nil {
			t.Fatalf("send %q: %v", input, err)
		}
		if res.Fallback {
			t.Fatalf("local turn must not fall back")
		}
		if res.Reply.Content != guide.Select(input) {
			t.Fatalf("unexpected reply for %q: %q", input, res.Reply.Content)
		}
	}

	messages, err := store.ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2*len(inputs) {
		t.Fatalf("expected %d messages, got %d", 2*len(inputs), len(messages))
	}
	for i, msg := range messages {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		if msg.Role != want {
			t.Fatalf("message %d: expected role %s, got %s", i, want, msg.Role)
		}
	}
	if manager.Typing(conv.ID) || manager.Phase(conv.ID) != PhaseIdle {
		t.Fatalf("conversation should be idle after turns")
	}
}

func TestEmptyInputIsIgnored(t *testing.T) {
	store := newTestStore(t)
	responder := &countingResponder{}
	manager := newTestManager(t, store, responder, nil, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{})

	for _, input := range []string{"", "   ", "\n\t"} {
		if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: input}); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput for %q, got %v", input, err)
		}
	}
	messages, err := store.ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
	if responder.calls() != 0 {
		t.Fatalf("responder must not be called for empty input")
	}
}

func TestSecondTurnRejectedWhileAwaitingReply(t *testing.T) {
	store := newTestStore(t)
	responder := newBlockingResponder()
	manager := newTestManager(t, store, responder, nil, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{})

	acked := make(chan *models.Message, 1)
	done := make(chan error, 1)
	go func() {
		_, err := manager.Send(TurnRequest{
			ConversationID: conv.ID,
			Content:        "eerste vraag",
			AckFn: func(msg *models.Message) error {
				acked <- msg
				return nil
			},
		})
		done <- err
	}()

	select {
	case msg := <-acked:
		if msg.Role != models.RoleUser || msg.Content != "eerste vraag" {
			t.Fatalf("unexpected ack: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("user message was not acknowledged")
	}
	select {
	case <-responder.started:
	case <-time.After(time.Second):
		t.Fatalf("responder did not start")
	}

	if !manager.Typing(conv.ID) || manager.Phase(conv.ID) != PhaseAwaitingReply {
		t.Fatalf("expected typing while awaiting reply")
	}
	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "tweede vraag"}); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}

	close(responder.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first turn failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("first turn did not finish")
	}
	if manager.Typing(conv.ID) {
		t.Fatalf("typing flag should be cleared")
	}

	messages, err := store.ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("rejected turn must not be stored, got %d messages", len(messages))
	}
}

func TestRemoteFailureStoresFallback(t *testing.T) {
	store := newTestStore(t)
	remote := &fakeClientSource{client: &fakeClient{err: errors.New("503 from provider")}}
	manager := newTestManager(t, store, guide.New(), remote, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{Mode: models.ModeRemote, Provider: "gemini"})

	res, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "Wat is Fabric?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Fallback || res.Reply.Content != ai.FallbackReply {
		t.Fatalf("expected fallback reply, got %+v", res.Reply)
	}

	messages, err := store.ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 || messages[1].Content != ai.FallbackReply {
		t.Fatalf("expected user message and fallback, got %+v", messages)
	}
}

func TestRemoteUnavailableClientStoresFallback(t *testing.T) {
	store := newTestStore(t)
	remote := &fakeClientSource{err: ai.ErrUnknownProvider}
	manager := newTestManager(t, store, guide.New(), remote, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{Mode: models.ModeRemote, Provider: "mistral"})

	res, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "hallo"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Fallback {
		t.Fatalf("expected fallback when client cannot be built")
	}
}

func TestRemoteRequestCarriesHistoryAndActiveSnippets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	client := &fakeClient{reply: "antwoord"}
	remote := &fakeClientSource{client: client}
	manager := newTestManager(t, store, guide.New(), remote, config.WorkerConfig{})
	conv := createConversation(t, store, assistant.ConversationOptions{Mode: models.ModeRemote, Provider: "openai", Model: "gpt-4o", Search: true})

	active, err := store.CreateSnippet(ctx, "Bronnen", "SAP BW")
	if err != nil {
		t.Fatalf("create snippet: %v", err)
	}
	hidden, err := store.CreateSnippet(ctx, "Verborgen", "geheim")
	if err != nil {
		t.Fatalf("create snippet: %v", err)
	}
	if _, err := store.SetSnippetActive(ctx, hidden.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "eerste"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "tweede"}); err != nil {
		t.Fatalf("second send: %v", err)
	}

	req := client.last()
	if req.Input != "tweede" || !req.Search {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.History) != 2 || req.History[0].Content != "eerste" || req.History[1].Content != "antwoord" {
		t.Fatalf("unexpected history: %+v", req.History)
	}
	if len(req.Snippets) != 1 || req.Snippets[0].ID != active.ID {
		t.Fatalf("expected only the active snippet, got %+v", req.Snippets)
	}
	if remote.provider != "openai" || remote.model != "gpt-4o" {
		t.Fatalf("unexpected client lookup %s/%s", remote.provider, remote.model)
	}
	if id, ok := ai.ConversationFromContext(client.lastCtx()); !ok || id != conv.ID {
		t.Fatalf("expected conversation id on request context")
	}

	if _, err := store.SetSnippetActive(ctx, hidden.ID, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "derde"}); err != nil {
		t.Fatalf("third send: %v", err)
	}
	req = client.last()
	if req.Input != "derde" || len(req.Snippets) != 2 {
		t.Fatalf("expected both snippets after reactivation, got %+v", req.Snippets)
	}
	seen := map[string]bool{}
	for _, s := range req.Snippets {
		seen[s.ID] = true
	}
	if !seen[active.ID] || !seen[hidden.ID] {
		t.Fatalf("missing snippet after reactivation: %+v", req.Snippets)
	}
}

func TestUnknownConversation(t *testing.T) {
	store := newTestStore(t)
	manager := newTestManager(t, store, guide.New(), nil, config.WorkerConfig{})
	if _, err := manager.Send(TurnRequest{ConversationID: 404, Content: "hallo"}); err == nil {
		t.Fatalf("expected error for unknown conversation")
	}
	if manager.Phase(404) != PhaseIdle {
		t.Fatalf("failed turn must release the conversation")
	}
}

func TestBusyConversationDoesNotBlockOthers(t *testing.T) {
	store := newTestStore(t)
	slow := newBlockingResponder()
	responder := &routingResponder{slow: slow, slowInput: "langzaam"}
	manager := newTestManager(t, store, responder, nil, config.WorkerConfig{MinWorkers: 1, MaxWorkers: 3, QueueSize: 16})

	slowConv := createConversation(t, store, assistant.ConversationOptions{})
	slowDone := make(chan error, 1)
	go func() {
		_, err := manager.Send(TurnRequest{ConversationID: slowConv.ID, Content: "langzaam"})
		slowDone <- err
	}()
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatalf("slow turn did not start")
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		conv := createConversation(t, store, assistant.ConversationOptions{})
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := manager.Send(TurnRequest{ConversationID: id, Content: "stap 1"}); err != nil {
				t.Errorf("send conversation %d: %v", id, err)
			}
		}(conv.ID)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatalf("other conversations were blocked by the slow one")
	}

	close(slow.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow turn: %v", err)
	}
}

func TestLocalReplyDelay(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, guide.New(), nil, Options{
		Workers:    config.WorkerConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 2},
		ReplyDelay: 50 * time.Millisecond,
	})
	defer manager.Close()
	conv := createConversation(t, store, assistant.ConversationOptions{})

	start := time.Now()
	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "hallo"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected artificial delay, reply came after %s", elapsed)
	}
}

func TestCloseReleasesGoroutines(t *testing.T) {
	store := newTestStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	manager := NewManager(store, guide.New(), nil, Options{
		Workers: config.WorkerConfig{MinWorkers: 2, MaxWorkers: 4, QueueSize: 4, IdleTimeout: time.Minute},
	})
	conv := createConversation(t, store, assistant.ConversationOptions{})
	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "governance"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	manager.Close()
	manager.Close()

	if _, err := manager.Send(TurnRequest{ConversationID: conv.ID, Content: "nog een"}); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

// --- helpers ---

type countingResponder struct {
	mu sync.Mutex
	n  int
}

func (r *countingResponder) Reply(_ context.Context, _ []*models.Message, input string) (string, error) {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	return guide.Select(input), nil
}

func (r *countingResponder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type blockingResponder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingResponder() *blockingResponder {
	return &blockingResponder{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingResponder) Reply(_ context.Context, _ []*models.Message, input string) (string, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	return guide.Select(input), nil
}

type routingResponder struct {
	slow      *blockingResponder
	slowInput string
}

func (r *routingResponder) Reply(ctx context.Context, history []*models.Message, input string) (string, error) {
	if input == r.slowInput {
		return r.slow.Reply(ctx, history, input)
	}
	return guide.Select(input), nil
}

type fakeClient struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []ai.Request
	ctxs  []context.Context
}

func (c *fakeClient) Generate(ctx context.Context, req ai.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	c.ctxs = append(c.ctxs, ctx)
	return c.reply, c.err
}

func (c *fakeClient) last() ai.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqs[len(c.reqs)-1]
}

func (c *fakeClient) lastCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctxs[len(c.ctxs)-1]
}

type fakeClientSource struct {
	client   ai.Client
	err      error
	provider string
	model    string
}

func (s *fakeClientSource) Client(_ context.Context, provider, model string) (ai.Client, error) {
	s.provider, s.model = provider, model
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}
