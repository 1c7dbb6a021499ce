package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"fabricguide/internal/config"
	"fabricguide/internal/models"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient talks to the Gemini API through google.golang.org/genai.
// Search requests enable the native Google Search tool.
type GeminiClient struct {
	models contentGenerator
	model  string
}

// NewGeminiClient creates a Gemini client for the configured model.
func NewGeminiClient(ctx context.Context, pc config.ProviderConfig) (*GeminiClient, error) {
	if strings.TrimSpace(pc.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:  pc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if pc.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: pc.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{models: client.Models, model: pc.Model}, nil
}

// Generate sends the request and returns the model text.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	contents, cfg := buildGeminiRequest(req)
	res, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildGeminiRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, turns := splitHistory(req.History)

	contents := make([]*genai.Content, 0, len(turns)+1)
	for _, msg := range turns {
		var role genai.Role
		switch msg.Role {
		case models.RoleUser:
			role = genai.RoleUser
		case models.RoleAssistant:
			role = genai.RoleModel
		default:
			continue
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(AugmentInput(req.Input, req.Snippets), genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructionWith(system), genai.RoleUser),
	}
	if req.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return contents, cfg
}
