// Package converter превращает markdown в PPTX через внешний pandoc.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"slidecraft/internal/apperr"
	"slidecraft/internal/logs"
	"slidecraft/internal/shell"
)

type Image struct {
	Name string `json:"name"`
	Data string `json:"data" validate:"required"` // base64, допускается data:image/...;base64,
}

type Request struct {
	Markdown string
	Images   []Image
	Template string // имя файла в каталоге шаблонов, пусто: по умолчанию
}

type Options struct {
	PandocPath       string
	WorkDir          string // пусто: os.TempDir()
	TemplateDir      string
	DefaultTemplate  string // blank_default.pptx
	FallbackTemplate string // template.pptx
	Timeout          time.Duration
}

// Output: готовый документ во временном каталоге запроса.
// Close удаляет каталог; вызывать обязательно.
type Output struct {
	Path           string
	Filename       string
	TemplateUsed   string
	SlideCount     int
	CharacterCount int
	ImagesCount    int
	Duration       time.Duration

	dir string
}

func (o *Output) Close() error {
	if o == nil || o.dir == "" {
		return nil
	}
	return os.RemoveAll(o.dir)
}

type Converter struct {
	opts   Options
	runner shell.Runner
	now    func() time.Time
}

func New(opts Options, runner shell.Runner) *Converter {
	if opts.PandocPath == "" {
		opts.PandocPath = "pandoc"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Converter{opts: opts, runner: runner, now: time.Now}
}

// Convert: Received → Staged → Converting → Completed | Failed.
// Каталог запроса уникален, markdown и картинки удаляются на любом исходе.
func (c *Converter) Convert(ctx context.Context, req Request) (*Output, error) {
	if strings.TrimSpace(req.Markdown) == "" {
		return nil, apperr.Validation("No markdown content received")
	}

	// картинки разбираем до того, как что-то пишем на диск
	type decoded struct {
		data []byte
		ext  string
	}
	images := make([]decoded, 0, len(req.Images))
	for i, img := range req.Images {
		b, ext, err := decodeImage(img.Name, img.Data)
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("images[%d]: invalid image data", i))
		}
		images = append(images, decoded{data: b, ext: ext})
	}

	started := c.now()
	dir, err := os.MkdirTemp(c.opts.WorkDir, "convert-*")
	if err != nil {
		return nil, apperr.Dependency("Cannot stage conversion", err)
	}
	// pandoc запускается с Dir=dir, поэтому все пути в аргументах абсолютные
	if abs, aerr := filepath.Abs(dir); aerr == nil {
		dir = abs
	} else {
		_ = os.RemoveAll(dir)
		return nil, apperr.Dependency("Cannot stage conversion", aerr)
	}
	out := &Output{dir: dir}
	ok := false
	defer func() {
		if !ok {
			_ = os.RemoveAll(dir)
		}
	}()

	// Staged
	md := StripInlineImages(req.Markdown)
	staged := make([]string, 0, len(images)+1)
	for i, img := range images {
		p := filepath.Join(dir, fmt.Sprintf("image_%d%s", i, img.ext))
		if err := os.WriteFile(p, img.data, 0o600); err != nil {
			return nil, apperr.Dependency("Cannot stage image", err)
		}
		staged = append(staged, p)
		md += imageSlide(p)
	}
	input := filepath.Join(dir, "input.md")
	if err := os.WriteFile(input, []byte(md), 0o600); err != nil {
		return nil, apperr.Dependency("Cannot stage markdown", err)
	}
	staged = append(staged, input)
	defer func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}()

	// Converting
	tpl := c.resolveTemplate(req.Template)
	out.Filename = fmt.Sprintf("presentation_%d.pptx", started.UnixNano())
	out.Path = filepath.Join(dir, out.Filename)
	args := []string{input, "-o", out.Path, "--from", "markdown", "--to", "pptx"}
	if tpl != "" {
		args = append(args, "--reference-doc="+tpl)
		out.TemplateUsed = filepath.Base(tpl)
	}

	log := logs.Logger.WithFields(logrus.Fields{
		"template": out.TemplateUsed,
		"images":   len(images),
		"chars":    len(req.Markdown),
	})
	log.Debug("pandoc: start")

	// запущенная конвертация доживает до конца или до таймаута,
	// даже если клиент уже отключился
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
	defer cancel()
	_, err = c.runner.Run(runCtx, shell.Command{Name: c.opts.PandocPath, Args: args, Dir: dir})
	out.Duration = c.now().Sub(started)
	if err != nil {
		log.WithError(err).Warn("pandoc: failed")
		return nil, conversionError(err)
	}
	if st, err := os.Stat(out.Path); err != nil || st.Size() == 0 {
		log.Warn("pandoc: no output produced")
		return nil, apperr.Conversion("Error converting markdown to PPTX", "converter produced no output file", err)
	}

	// Completed
	out.SlideCount = SlideCount(md)
	out.CharacterCount = utf8.RuneCountInString(req.Markdown)
	out.ImagesCount = len(images)
	ok = true
	log.WithFields(logrus.Fields{"slides": out.SlideCount, "dur": out.Duration}).Info("pandoc: done")
	return out, nil
}

func conversionError(err error) error {
	var ee *shell.ExitError
	switch {
	case errors.Is(err, shell.ErrTimeout):
		return apperr.Conversion("Conversion timed out", "", err)
	case errors.As(err, &ee):
		return apperr.Conversion("Error converting markdown to PPTX", strings.TrimSpace(ee.Stderr), err)
	default:
		// бинарника нет или не запустился
		return apperr.Dependency("Converter unavailable", err)
	}
}

// resolveTemplate: выбранный (если это имя существующего .pptx) →
// шаблон по умолчанию → запасной → без шаблона.
func (c *Converter) resolveTemplate(selected string) string {
	if name, ok := TemplateName(selected); ok {
		if p := c.existing(name); p != "" {
			return p
		}
	}
	for _, name := range []string{c.opts.DefaultTemplate, c.opts.FallbackTemplate} {
		if name == "" {
			continue
		}
		if p := c.existing(name); p != "" {
			return p
		}
	}
	return ""
}

func (c *Converter) existing(name string) string {
	p := filepath.Join(c.opts.TemplateDir, name)
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// TemplateName: true, если s является простым именем .pptx без путей.
func TemplateName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s != filepath.Base(s) || strings.ContainsAny(s, `/\`) {
		return "", false
	}
	if !strings.EqualFold(filepath.Ext(s), ".pptx") {
		return "", false
	}
	return s, true
}
