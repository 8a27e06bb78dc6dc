// Package llm: сквозной доступ к локальному Ollama: список моделей и чат.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// SystemPrompt добавляется первым сообщением в каждый чат.
const SystemPrompt = `You are an AI that generates professional presentations using Markdown. Each slide starts with "##", use "-" for bullet points. Output Markdown only.`

type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// Client: обёртка над api.Client с нашим промптом и таймаутом.
type Client struct {
	api *api.Client
	err error // невалидный base URL; отдаётся из каждого вызова
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err == nil && (base.Scheme == "" || base.Host == "") {
		err = fmt.Errorf("ollama base url %q must be absolute", baseURL)
	}
	if err != nil {
		return &Client{err: err}
	}
	return &Client{api: api.NewClient(base, &http.Client{Timeout: timeout})}
}

// ListModels: имена локальных моделей (GET /api/tags).
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama list: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Chat: POST /api/chat без стриминга, с системным промптом в начале.
// Системные сообщения клиента отбрасываются.
func (c *Client) Chat(ctx context.Context, model string, history []Message) (Message, error) {
	if c.err != nil {
		return Message{}, c.err
	}
	msgs := make([]api.Message, 0, len(history)+1)
	msgs = append(msgs, api.Message{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	var reply Message
	err := c.api.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
	}, func(r api.ChatResponse) error {
		reply.Role = r.Message.Role
		reply.Content += r.Message.Content
		return nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("ollama chat: %w", err)
	}
	if reply.Role == "" {
		reply.Role = "assistant"
	}
	return reply, nil
}
