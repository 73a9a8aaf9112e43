package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alexedwards/flow"
	"github.com/pudottapommin/golib/http/middleware/compressor"
	"github.com/pudottapommin/golib/http/middleware/logger"
	"github.com/pudottapommin/golib/http/middleware/requestid"
	"github.com/pudottapommin/shelf/config"
	"github.com/pudottapommin/shelf/internal/api"
	"github.com/pudottapommin/shelf/pkg/notes"
	"github.com/pudottapommin/shelf/pkg/scheduler"
	"github.com/pudottapommin/shelf/pkg/server"
	"github.com/pudottapommin/shelf/pkg/storage"
	"github.com/pudottapommin/shelf/pkg/words"
	"golang.org/x/sync/errgroup"
)

const healthPath = "/healthz"

type App struct {
	*server.Server
	store storage.Store
	sched *scheduler.Scheduler
	notes *notes.Service
	cfg   *config.Config
	l     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New wires the note service on top of store. The App owns store from here
// on and closes it in Shutdown.
func New(ctx context.Context, store storage.Store, cfg *config.Config, l *slog.Logger) (*App, error) {
	list, err := words.Load(cfg.Notes.WordsPath)
	if err != nil {
		return nil, err
	}
	gen, err := words.New(list, store,
		words.WithSeparator(cfg.Notes.Separator),
		words.WithMaxAttempts(cfg.Notes.MaxIDAttempts))
	if err != nil {
		return nil, err
	}
	l.Debug("word list loaded", "words", gen.Len())

	sched := scheduler.New(store, store,
		scheduler.WithLogger(l),
		scheduler.WithBackoff(scheduler.Backoff{
			Initial: cfg.Scheduler.InitialBackoff,
			Max:     cfg.Scheduler.MaxBackoff,
			Factor:  2,
		}))

	a := &App{
		Server: server.New(ctx, flow.New(), cfg.Server.Host),
		store:  store,
		sched:  sched,
		notes:  notes.New(store, sched, gen, notes.WithLogger(l)),
		cfg:    cfg,
		l:      l,
	}
	a.routes()
	return a, nil
}

func (a *App) routes() {
	a.E().Use(
		requestid.New().Handler,
		logger.New(logger.WithLogger(a.l, "[HTTP]"), logger.WithNext(func(w http.ResponseWriter, r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, healthPath)
		})).Handler,
		compressor.MustNew(),
	)

	{
		h := api.NewHandlers(a.notes, a.cfg.Notes, a.l)
		h.AddHandlers(a.E())
	}

	a.E().HandleFunc(healthPath, a.health, "GET")
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if _, err := a.store.Exists(r.Context(), ""); err != nil {
		a.l.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Run recovers pending deletions and serves until the server context is done.
func (a *App) Run() error {
	stats, err := a.sched.Recover(a.Ctx())
	if err != nil {
		_ = a.Shutdown(context.Background())
		return fmt.Errorf("failed to recover pending deletions: %w", err)
	}
	a.l.Info("pending deletions recovered", "swept", stats.Swept, "armed", stats.Armed)

	g, gctx := errgroup.WithContext(a.Ctx())
	g.Go(func() error {
		a.l.Debug("Server started", "address", a.Addr())
		return a.Server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

// Sweep deletes every note that is already due without serving.
func (a *App) Sweep(ctx context.Context) (int, error) {
	return a.sched.Sweep(ctx)
}

// Shutdown stops the server, then the scheduler, then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.closeOnce.Do(func() {
		if err := a.Server.Shutdown(ctx, a.cfg.Server.ShutdownTimeout); err != nil {
			a.closeErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
		a.sched.Close()
		a.store.Close()
		a.l.Debug("Server stopped")
	})
	return a.closeErr
}
