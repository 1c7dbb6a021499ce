package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	WebSearchRateLimit   = 5
	WebSearchRateWindow  = time.Minute
	WebSearchHTTPTimeout = 10 * time.Second
	maxFetchBodySize     = 512 * 1024
)

type conversationContextKey struct{}

// WithConversation tags ctx with the conversation a request belongs to, so
// tools can apply per-conversation limits.
func WithConversation(ctx context.Context, conversationID int64) context.Context {
	if conversationID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, conversationContextKey{}, conversationID)
}

// ConversationFromContext returns the conversation id set by WithConversation.
func ConversationFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(conversationContextKey{}).(int64)
	return id, ok
}

func rateKey(ctx context.Context) string {
	if id, ok := ConversationFromContext(ctx); ok {
		return "conversation:" + strconv.FormatInt(id, 10)
	}
	return "anonymous"
}

// toolRateLimiter is a sliding-window limiter keyed by caller.
type toolRateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	hits   map[string][]time.Time
	now    func() time.Time
}

func newToolRateLimiter(limit int, window time.Duration) *toolRateLimiter {
	if limit <= 0 {
		limit = WebSearchRateLimit
	}
	if window <= 0 {
		window = WebSearchRateWindow
	}
	return &toolRateLimiter{limit: limit, window: window, hits: make(map[string][]time.Time), now: time.Now}
}

func (l *toolRateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	queue = queue[idx:]
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return false
	}
	l.hits[key] = append(queue, now)
	return true
}

func (w *webSearchTool) fetchURL(ctx context.Context, target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "FabricGuide-WebSearch/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}
	limited := io.LimitReader(resp.Body, maxFetchBodySize)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return pageText(limited)
	}
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// pageText reduces an HTML document to its title and visible body text.
func pageText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, svg, nav, footer").Remove()
	body := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" || strings.HasPrefix(body, title) {
		return body, nil
	}
	return title + "\n\n" + body, nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
