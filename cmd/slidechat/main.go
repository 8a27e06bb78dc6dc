// slidechat: консольный чат: запрос к модели, Markdown-ответ, сразу PPTX.
//
//	slidechat -server http://localhost:4000 -user alice
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"slidecraft/internal/chatclient"
	"slidecraft/internal/converter"
	"slidecraft/internal/llm"
)

const maxImageBytes = 5 << 20

type session struct {
	client   *chatclient.Client
	model    string
	template string
	images   []converter.Image
	history  []llm.Message
	outDir   string
	out      io.Writer
	now      func() time.Time
}

func main() {
	server := flag.String("server", envOr("SLIDECRAFT_URL", "http://localhost:4000"), "API base URL")
	user := flag.String("user", os.Getenv("SLIDECRAFT_USER"), "username")
	model := flag.String("model", "", "model name (server default if empty)")
	tpl := flag.String("template", "", "presentation template")
	outDir := flag.String("out", ".", "where to write presentations")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	s := &session{
		client:   chatclient.New(*server, 3*time.Minute),
		model:    *model,
		template: *tpl,
		outDir:   *outDir,
		out:      os.Stdout,
		now:      time.Now,
	}
	if err := s.login(ctx, in, *user); err != nil {
		fmt.Fprintln(os.Stderr, "slidechat:", err)
		os.Exit(1)
	}
	if err := s.loop(ctx, in); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintln(os.Stderr, "slidechat:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (s *session) login(ctx context.Context, in *bufio.Reader, username string) error {
	if username == "" {
		fmt.Fprint(s.out, "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		username = strings.TrimSpace(line)
	}
	password := os.Getenv("SLIDECRAFT_PASSWORD")
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("password required: set SLIDECRAFT_PASSWORD or run in a terminal")
		}
		fmt.Fprint(s.out, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(s.out)
		if err != nil {
			return err
		}
		password = string(pw)
	}

	u, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if s.model == "" {
		if _, def, err := s.client.Models(ctx); err == nil {
			s.model = def
		}
	}
	fmt.Fprintf(s.out, "Logged in as %s (%s). Model: %s. Type /quit to exit.\n", u.Username, u.Role, s.model)
	return nil
}

func (s *session) loop(ctx context.Context, in *bufio.Reader) error {
	for {
		fmt.Fprint(s.out, "> ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		quit, err := s.handle(ctx, line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// handle выполняет команду или отправляет prompt модели. true: выйти.
func (s *session) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, s.prompt(ctx, line)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		s.history = nil
		s.images = nil
		fmt.Fprintln(s.out, "history cleared")
	case "/template":
		return false, s.chooseTemplate(ctx, arg)
	case "/image":
		img, err := readImage(arg)
		if err != nil {
			return false, err
		}
		s.images = append(s.images, img)
		fmt.Fprintf(s.out, "image %s attached (%d total)\n", img.Name, len(s.images))
	case "/history":
		return false, s.showHistory(ctx)
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
	return false, nil
}

func (s *session) chooseTemplate(ctx context.Context, name string) error {
	list, err := s.client.Templates(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		for _, t := range list {
			mark := " "
			if t.Filename == s.template {
				mark = "*"
			}
			fmt.Fprintf(s.out, "%s %-30s %s\n", mark, t.Filename, t.Description)
		}
		return nil
	}
	for _, t := range list {
		if t.Filename == name {
			s.template = name
			fmt.Fprintln(s.out, "template:", name)
			return nil
		}
	}
	return fmt.Errorf("template %q not found", name)
}

func (s *session) showHistory(ctx context.Context) error {
	rows, err := s.client.History(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(s.out, "no presentations yet")
		return nil
	}
	for _, r := range rows {
		md := r.Metadata.Data()
		fmt.Fprintf(s.out, "%s  %-32s slides=%d images=%d\n",
			r.Timestamp.Local().Format("2006-01-02 15:04"), r.Filename, md.SlideCount, md.ImagesCount)
	}
	return nil
}

func (s *session) prompt(ctx context.Context, text string) error {
	s.history = append(s.history, llm.Message{Role: "user", Content: text})
	reply, err := s.client.Chat(ctx, s.model, s.history)
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		return err
	}
	s.history = append(s.history, reply)
	fmt.Fprintln(s.out, reply.Content)

	p, err := s.client.Convert(ctx, reply.Content, s.template, s.images)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	path := filepath.Join(s.outDir, fmt.Sprintf("presentation_%d.pptx", s.now().Unix()))
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "saved %s (%d bytes)\n", path, len(p.Data))
	if p.HistoryWarning != "" {
		fmt.Fprintln(s.out, "warning:", p.HistoryWarning)
	}
	return nil
}

// readImage читает файл и кодирует его в data URL для /convert.
func readImage(path string) (converter.Image, error) {
	if path == "" {
		return converter.Image{}, errors.New("usage: /image <path>")
	}
	st, err := os.Stat(path)
	if err != nil {
		return converter.Image{}, err
	}
	if st.Size() > maxImageBytes {
		return converter.Image{}, fmt.Errorf("%s is larger than %d bytes", path, maxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return converter.Image{}, err
	}
	mimeType := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	}
	return converter.Image{
		Name: filepath.Base(path),
		Data: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
