package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"fabricguide/internal/config"
)

// ErrSearchRateLimited is returned when a conversation exceeds its search quota.
var ErrSearchRateLimited = errors.New("web search rate limit exceeded, please retry in a minute")

// NewWebSearchTool builds the web_search tool. It returns nil when no search
// provider could be initialised.
func NewWebSearchTool(ctx context.Context, cfg config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	googleTool := newGoogleSearch(ctx, cfg, logger)
	duckTool := newDDGSearch(ctx, cfg, logger)
	if googleTool == nil && duckTool == nil {
		logger.Warn("web search tool disabled: no search providers available")
		return nil
	}
	ws := newWebSearch(googleTool, duckTool, cfg, logger)

	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Search the web for current information about Microsoft Fabric, Azure or SAP BW; " +
			"falls back to another provider if needed; " +
			"fetches the page directly when given a URL.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language query or URL to search",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, ws.run)
}

type webSearchTool struct {
	google     tool.InvokableTool
	duck       tool.InvokableTool
	httpClient *http.Client
	limiter    *toolRateLimiter
	logger     *zap.Logger
}

type webSearchParams struct {
	Query string `json:"query"`
}

func newWebSearch(google, duck tool.InvokableTool, cfg config.SearchConfig, logger *zap.Logger) *webSearchTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = WebSearchHTTPTimeout
	}
	return &webSearchTool{
		google:     google,
		duck:       duck,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newToolRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:     logger,
	}
}

func (w *webSearchTool) run(ctx context.Context, params *webSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	if !w.limiter.Allow(rateKey(ctx)) {
		return "", ErrSearchRateLimited
	}

	if looksLikeURL(query) {
		content, err := w.fetchURL(ctx, query)
		if err == nil {
			return content, nil
		}
		w.logger.Warn("web url fetch failed", zap.String("url", query), zap.Error(err))
	}

	payloadBytes, err := json.Marshal(webSearchParams{Query: query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	payload := string(payloadBytes)

	if w.google != nil {
		result, err := w.google.InvokableRun(ctx, payload)
		if err == nil {
			return result, nil
		}
		w.logger.Warn("google search failed", zap.Error(err))
	}
	if w.duck != nil {
		result, err := w.duck.InvokableRun(ctx, payload)
		if err == nil {
			return result, nil
		}
		w.logger.Warn("duckduckgo search failed", zap.Error(err))
	}
	return "", errors.New("no search provider succeeded")
}

func newDDGSearch(ctx context.Context, cfg config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = WebSearchHTTPTimeout
	}
	duckTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: maxResults,
		Region:     duckduckgo.RegionWT,
		Timeout:    timeout,
	})
	if err != nil {
		logger.Warn("duckduckgo search disabled", zap.Error(err))
		return nil
	}
	return duckTool
}

func newGoogleSearch(ctx context.Context, cfg config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	if cfg.GoogleAPIKey == "" || cfg.GoogleEngineID == "" {
		logger.Info("google search disabled: search.google_api_key or search.google_engine_id not set")
		return nil
	}
	num := cfg.MaxResults
	if num <= 0 {
		num = 5
	}
	googleTool, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         cfg.GoogleAPIKey,
		SearchEngineID: cfg.GoogleEngineID,
		Lang:           "nl",
		Num:            num,
	})
	if err != nil {
		logger.Warn("google search disabled", zap.Error(err))
		return nil
	}
	return googleTool
}
