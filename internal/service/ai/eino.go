package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"fabricguide/internal/config"
	"fabricguide/internal/models"
)

const claudeMaxTokens = 3000

type generateFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// EinoClient serves OpenAI-compatible and Claude providers through eino chat
// models. Search requests run a ReAct agent with the web_search tool.
type EinoClient struct {
	chat  generateFunc
	agent generateFunc
}

// NewEinoClient builds the chat model for provider and, when a search tool is
// given, the agent that may call it.
func NewEinoClient(ctx context.Context, provider string, pc config.ProviderConfig, search tool.BaseTool) (*EinoClient, error) {
	if strings.TrimSpace(pc.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key is not configured", provider)
	}
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			APIKey:  pc.APIKey,
		})
	case "claude":
		var baseURL *string
		if pc.BaseURL != "" {
			baseURL = &pc.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			BaseURL:   baseURL,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: create chat model: %w", provider, err)
	}

	client := &EinoClient{
		chat: func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return chatModel.Generate(ctx, input)
		},
	}
	if search != nil {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: []tool.BaseTool{search},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: init react agent: %w", provider, err)
		}
		client.agent = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return agent.Generate(ctx, input)
		}
	}
	return client, nil
}

// Generate sends the request and returns the assistant text.
func (c *EinoClient) Generate(ctx context.Context, req Request) (string, error) {
	run := c.chat
	if req.Search && c.agent != nil {
		run = c.agent
	}
	out, err := run(ctx, buildEinoMessages(req))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Content), nil
}

func buildEinoMessages(req Request) []*schema.Message {
	system, turns := splitHistory(req.History)

	messages := make([]*schema.Message, 0, len(turns)+2)
	messages = append(messages, schema.SystemMessage(instructionWith(system)))
	for _, msg := range turns {
		switch msg.Role {
		case models.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(AugmentInput(req.Input, req.Snippets)))
	return messages
}
