package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"slidecraft/config"
	"slidecraft/internal/account"
	"slidecraft/internal/admin"
	"slidecraft/internal/auth"
	"slidecraft/internal/converter"
	"slidecraft/internal/db"
	"slidecraft/internal/health"
	"slidecraft/internal/llm"
	"slidecraft/internal/logs"
	"slidecraft/internal/metrics"
	"slidecraft/internal/middleware"
	"slidecraft/internal/presentation"
	"slidecraft/internal/repo"
	"slidecraft/internal/shell"
	"slidecraft/internal/storage"
	"slidecraft/internal/templates"
	"slidecraft/internal/users"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	thumbs     *templates.Generator

	ctx    context.Context
	cancel context.CancelFunc
}

// Deps: всё внешнее, что нужно для сборки маршрутов. Тесты подставляют
// sqlite, локальное хранилище и фейковый shell.Runner.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Files  storage.Provider
	Runner shell.Runner
}

func (a *App) Initialize(cfg *config.Config) {
	/* 1) Логи */
	if err := logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		log.Fatalf("logs init failed: %v", err)
	}

	/* 2) DB: без неё трафик не принимаем */
	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logs.Logger.Fatalf("db open failed: %v", err)
	}
	if err := db.Migrate(d); err != nil {
		logs.Logger.Fatalf("db migrate failed: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx, d); err != nil {
		logs.Logger.Fatalf("db unreachable: %v", err)
	}

	/* 3) Хранилище презентаций */
	files, err := storage.New(context.Background(), cfg)
	if err != nil {
		logs.Logger.Fatalf("storage init failed: %v", err)
	}

	if err := a.Setup(Deps{Config: cfg, DB: d, Files: files, Runner: shell.Exec{}}); err != nil {
		logs.Logger.Fatalf("server setup failed: %v", err)
	}

	/* 4) Превью шаблонов: в фоне, best-effort */
	if cfg.Thumbnails.Enabled {
		go a.generateThumbnails()
	}

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
}

// Setup собирает сервисы и маршруты поверх готовых зависимостей.
func (a *App) Setup(d Deps) error {
	if d.Config == nil || d.DB == nil || d.Files == nil || d.Runner == nil {
		return fmt.Errorf("incomplete dependencies")
	}
	cfg := d.Config
	a.cfg = cfg
	a.db = d.DB
	a.ctx, a.cancel = context.WithCancel(context.Background())

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userSvc := users.NewService(d.DB, d.Files)

	conv := converter.New(converter.Options{
		PandocPath:       cfg.Converter.PandocPath,
		WorkDir:          cfg.Converter.WorkDir,
		TemplateDir:      cfg.Templates.Dir,
		DefaultTemplate:  cfg.Templates.Default,
		FallbackTemplate: cfg.Templates.Fallback,
		Timeout:          cfg.Converter.Timeout,
	}, d.Runner)
	presSvc := presentation.NewService(conv, repo.NewConversionStore(d.DB), d.Files)

	catalog := templates.NewCatalog(cfg.Templates.Dir, cfg.Thumbnails.Dir, "/thumbnails")
	a.thumbs = templates.NewGenerator(templates.GeneratorOptions{
		TemplateDir:     cfg.Templates.Dir,
		ThumbDir:        cfg.Thumbnails.Dir,
		LibreOfficePath: cfg.Thumbnails.LibreOfficePath,
		PdftoppmPath:    cfg.Thumbnails.PdftoppmPath,
		Timeout:         cfg.Thumbnails.Timeout,
	}, d.Runner)

	/* Router + middleware */
	a.Router = mux.NewRouter()
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* Health, метрики, статика */
	health.RegisterRoutes(a.Router, d.DB) // /healthz, /readyz
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	a.Router.PathPrefix("/thumbnails/").Handler(
		http.StripPrefix("/thumbnails/", noListing(http.FileServer(http.Dir(cfg.Thumbnails.Dir)))),
	).Methods(http.MethodGet, http.MethodHead)

	/* Публичное; токен, если есть, только для логов */
	public := a.Router.NewRoute().Subrouter()
	public.Use(middleware.OptionalAuth(tokens, userSvc))
	templates.RegisterRoutes(public, catalog)

	/* Аккаунт и админка */
	account.Attach(a.Router, account.Dependencies{
		Users:          userSvc,
		Tokens:         tokens,
		LoginPerMinute: cfg.Auth.LoginRatePerMinute,
	})
	admin.Attach(a.Router, admin.Dependencies{Users: userSvc, Tokens: tokens})

	/* Всё остальное: по токену */
	protected := a.Router.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(tokens, userSvc))
	presentation.RegisterRoutes(protected, presentation.NewHandler(presSvc))
	llm.RegisterRoutes(protected, llm.NewHandler(
		llm.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout),
		cfg.Ollama.DefaultModel,
	))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id", "X-Conversion-Id", "X-History-Warning"},
	})
	a.handler = c.Handler(limitBody(cfg.Server.MaxBodyBytes, a.Router))
	return nil
}

// Handler: корневой обработчик (CORS + лимит тела + маршруты).
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) generateThumbnails() {
	sum, err := a.thumbs.Run(a.ctx)
	if err != nil {
		logs.Logger.WithError(err).Warn("thumbnails: generation aborted")
		return
	}
	logs.Logger.Infof("thumbnails: %s", sum)
}

func limitBody(n int64, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, n)
		}
		next.ServeHTTP(w, r)
	})
}

// noListing прячет листинг каталогов у FileServer.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// запись ответа ждёт pandoc, поэтому WriteTimeout берётся из конфига
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
