package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"slidecraft/internal/logs"
	"slidecraft/internal/metrics"
	"slidecraft/internal/shell"
)

type GeneratorOptions struct {
	TemplateDir     string
	ThumbDir        string
	LibreOfficePath string
	PdftoppmPath    string
	Timeout         time.Duration // на один шаблон
}

// Generator рендерит первый слайд каждого шаблона в PNG:
// libreoffice → PDF → pdftoppm. Ошибки не фатальны.
type Generator struct {
	opts   GeneratorOptions
	runner shell.Runner
}

func NewGenerator(opts GeneratorOptions, runner shell.Runner) *Generator {
	if opts.LibreOfficePath == "" {
		opts.LibreOfficePath = "libreoffice"
	}
	if opts.PdftoppmPath == "" {
		opts.PdftoppmPath = "pdftoppm"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Generator{opts: opts, runner: runner}
}

type Summary struct {
	Generated int
	Cached    int
	Failed    int
	Skipped   bool // нет утилит
}

func (s Summary) String() string {
	if s.Skipped {
		return "skipped (renderer not installed)"
	}
	return fmt.Sprintf("generated=%d cached=%d failed=%d", s.Generated, s.Cached, s.Failed)
}

// Run обходит каталог шаблонов последовательно: LibreOffice плохо
// переносит параллельные запуски с одним профилем.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	for _, tool := range []string{g.opts.LibreOfficePath, g.opts.PdftoppmPath} {
		if !g.runner.LookPath(tool) {
			logs.Logger.WithField("tool", tool).Warn("thumbnails: renderer not found, skipping")
			sum.Skipped = true
			return sum, nil
		}
	}

	names, err := templateFiles(g.opts.TemplateDir)
	if err != nil {
		return sum, err
	}
	if len(names) == 0 {
		return sum, nil
	}
	if err := os.MkdirAll(g.opts.ThumbDir, 0o755); err != nil {
		return sum, err
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		log := logs.Logger.WithField("template", name)
		fresh, err := g.upToDate(name)
		if err != nil {
			log.WithError(err).Warn("thumbnails: stat failed")
		}
		if fresh {
			sum.Cached++
			metrics.Thumbnail(metrics.ResultCached)
			continue
		}
		if err := g.render(ctx, name); err != nil {
			sum.Failed++
			metrics.Thumbnail(metrics.ResultFailed)
			log.WithError(err).Warn("thumbnails: render failed")
			continue
		}
		sum.Generated++
		metrics.Thumbnail(metrics.ResultOK)
		log.Debug("thumbnails: generated")
	}

	logs.Logger.WithFields(logrus.Fields{
		"generated": sum.Generated,
		"cached":    sum.Cached,
		"failed":    sum.Failed,
	}).Info("thumbnails: done")
	return sum, nil
}

func baseName(name string) string { return strings.TrimSuffix(name, filepath.Ext(name)) }

// upToDate: PNG есть и не старше шаблона.
func (g *Generator) upToDate(name string) (bool, error) {
	tpl, err := os.Stat(filepath.Join(g.opts.TemplateDir, name))
	if err != nil {
		return false, err
	}
	png, err := os.Stat(filepath.Join(g.opts.ThumbDir, baseName(name)+".png"))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !png.ModTime().Before(tpl.ModTime()), nil
}

func (g *Generator) render(ctx context.Context, name string) error {
	src, err := filepath.Abs(filepath.Join(g.opts.TemplateDir, name))
	if err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "thumb-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	// свой HOME, чтобы не делить профиль LibreOffice с другими процессами
	_, err = g.runner.Run(ctx, shell.Command{
		Name: g.opts.LibreOfficePath,
		Args: []string{"--headless", "--norestore", "--convert-to", "pdf", "--outdir", tmp, src},
		Env:  []string{"HOME=" + tmp},
	})
	if err != nil {
		return fmt.Errorf("libreoffice: %w", err)
	}
	pdf := filepath.Join(tmp, baseName(name)+".pdf")
	if _, err := os.Stat(pdf); err != nil {
		return fmt.Errorf("libreoffice produced no pdf: %w", err)
	}

	prefix := filepath.Join(g.opts.ThumbDir, baseName(name))
	_, err = g.runner.Run(ctx, shell.Command{
		Name: g.opts.PdftoppmPath,
		Args: []string{"-f", "1", "-l", "1", "-png", "-r", "150", "-singlefile", pdf, prefix},
	})
	if err != nil {
		return fmt.Errorf("pdftoppm: %w", err)
	}
	if _, err := os.Stat(prefix + ".png"); err != nil {
		return fmt.Errorf("pdftoppm produced no png: %w", err)
	}

	// устаревшие превью других форматов больше не нужны
	for _, ext := range []string{".svg", ".jpg", ".jpeg"} {
		_ = os.Remove(prefix + ext)
	}
	return nil
}
