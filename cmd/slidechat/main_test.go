package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidecraft/internal/chatclient"
	"slidecraft/internal/httpx"
	"slidecraft/internal/llm"
)

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "chart.JPG")
	require.NoError(t, os.WriteFile(p, []byte{0xff, 0xd8, 0xff}, 0o644))

	img, err := readImage(p)
	require.NoError(t, err)
	require.Equal(t, "chart.JPG", img.Name)
	require.True(t, strings.HasPrefix(img.Data, "data:image/jpeg;base64,"))

	_, err = readImage("")
	require.Error(t, err)
	_, err = readImage(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func newSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	mx := http.NewServeMux()
	mx.HandleFunc("GET /api/templates", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"templates":[{"filename":"dark.pptx","description":"Dark","thumbnail":null}]}`))
	})
	mx.HandleFunc("POST /api/chat", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": llm.Message{Role: "assistant", Content: "## Slide"}})
	})
	mx.HandleFunc("POST /convert", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="presentation_1.pptx"`)
		_, _ = w.Write([]byte("PK"))
	})
	srv := httptest.NewServer(mx)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	return &session{
		client: chatclient.New(srv.URL, time.Second),
		model:  "m1",
		outDir: t.TempDir(),
		out:    &out,
		now:    func() time.Time { return time.Unix(1700000000, 0) },
	}, &out
}

func TestHandle_Commands(t *testing.T) {
	s, out := newSession(t)
	ctx := context.Background()

	quit, err := s.handle(ctx, "/template dark.pptx")
	require.NoError(t, err)
	require.False(t, quit)
	require.Equal(t, "dark.pptx", s.template)

	_, err = s.handle(ctx, "/template nope.pptx")
	require.Error(t, err)
	require.Equal(t, "dark.pptx", s.template)

	_, err = s.handle(ctx, "/bogus")
	require.Error(t, err)

	quit, err = s.handle(ctx, "/quit")
	require.NoError(t, err)
	require.True(t, quit)
	require.Contains(t, out.String(), "template: dark.pptx")
}

func TestHandle_PromptWritesPresentation(t *testing.T) {
	s, out := newSession(t)

	_, err := s.handle(context.Background(), "make a slide")
	require.NoError(t, err)
	require.Len(t, s.history, 2)
	require.Equal(t, "assistant", s.history[1].Role)

	data, err := os.ReadFile(filepath.Join(s.outDir, "presentation_1700000000.pptx"))
	require.NoError(t, err)
	require.Equal(t, []byte("PK"), data)
	require.Contains(t, out.String(), "## Slide")

	_, err = s.handle(context.Background(), "/clear")
	require.NoError(t, err)
	require.Empty(t, s.history)
}
