// Package chatclient: HTTP-клиент к API slidecraft для консольного чата.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"slidecraft/internal/converter"
	"slidecraft/internal/llm"
	"slidecraft/internal/models"
	"slidecraft/internal/templates"
)

// User: профиль, как его отдаёт /api/auth/*.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Presentation: результат /convert.
type Presentation struct {
	Filename       string
	Data           []byte
	ConversionID   string
	HistoryWarning string
}

// APIError: problem-ответ сервера.
type APIError struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Title)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token string
}

// New: клиент с таймаутом на запрос; конвертация может идти минутами.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Token() string       { return c.token }
func (c *Client) SetToken(tok string) { c.token = tok }

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

// call выполняет запрос и декодирует JSON-ответ в out (если out != nil).
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{}
	if err := json.Unmarshal(raw, e); err != nil || e.Title == "" {
		e.Title = strings.TrimSpace(string(raw))
		if e.Title == "" {
			e.Title = http.StatusText(resp.StatusCode)
		}
	}
	e.Status = resp.StatusCode
	return e
}

// Login получает токен и запоминает его для следующих вызовов.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out.User, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Models возвращает доступные модели и модель по умолчанию.
func (c *Client) Models(ctx context.Context) ([]string, string, error) {
	var out struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, "", err
	}
	return out.Models, out.Default, nil
}

func (c *Client) Chat(ctx context.Context, model string, history []llm.Message) (llm.Message, error) {
	var out struct {
		Message llm.Message `json:"message"`
	}
	err := c.call(ctx, http.MethodPost, "/api/chat",
		map[string]any{"model": model, "messages": history}, &out)
	return out.Message, err
}

func (c *Client) Templates(ctx context.Context) ([]templates.Descriptor, error) {
	var out struct {
		Templates []templates.Descriptor `json:"templates"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

func (c *Client) History(ctx context.Context) ([]models.Conversion, error) {
	var out struct {
		Conversions []models.Conversion `json:"conversions"`
	}
	if err := c.call(ctx, http.MethodGet, "/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversions, nil
}

// Convert отправляет markdown на /convert и читает готовый PPTX целиком.
func (c *Client) Convert(ctx context.Context, markdown, template string, images []converter.Image) (*Presentation, error) {
	body := map[string]any{"markdown": markdown}
	if template != "" {
		body["template"] = template
	}
	if len(images) > 0 {
		body["images"] = images
	}
	resp, err := c.do(ctx, http.MethodPost, "/convert", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read presentation: %w", err)
	}
	return &Presentation{
		Filename:       attachmentName(resp.Header.Get("Content-Disposition")),
		Data:           data,
		ConversionID:   resp.Header.Get("X-Conversion-Id"),
		HistoryWarning: resp.Header.Get("X-History-Warning"),
	}, nil
}

func attachmentName(cd string) string {
	if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return ""
}
