// thumbnails перегенерирует превью шаблонов без запуска сервера.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"slidecraft/config"
	"slidecraft/internal/logs"
	"slidecraft/internal/shell"
	"slidecraft/internal/templates"
)

func main() {
	templateDir := flag.String("templates", "", "template directory (default from config)")
	thumbDir := flag.String("out", "", "thumbnail directory (default from config)")
	flag.Parse()

	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, "thumbnails:", err)
		os.Exit(1)
	}
	if err := logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		fmt.Fprintln(os.Stderr, "thumbnails:", err)
		os.Exit(1)
	}
	if *templateDir != "" {
		cfg.Templates.Dir = *templateDir
	}
	if *thumbDir != "" {
		cfg.Thumbnails.Dir = *thumbDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := templates.NewGenerator(templates.GeneratorOptions{
		TemplateDir:     cfg.Templates.Dir,
		ThumbDir:        cfg.Thumbnails.Dir,
		LibreOfficePath: cfg.Thumbnails.LibreOfficePath,
		PdftoppmPath:    cfg.Thumbnails.PdftoppmPath,
		Timeout:         cfg.Thumbnails.Timeout,
	}, shell.Exec{})

	sum, err := gen.Run(ctx)
	if err != nil {
		logs.Logger.WithError(err).Error("thumbnail generation failed")
		os.Exit(1)
	}
	fmt.Println("thumbnails:", sum)
	if sum.Failed > 0 {
		os.Exit(2)
	}
}
