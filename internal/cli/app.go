package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/client"
	"github.com/goliatone/go-auth-session/internal/views"
	"github.com/goliatone/go-auth-session/metrics"
	"github.com/goliatone/go-auth-session/store"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds the components a command works with. One app owns one session.
type app struct {
	cfg      *Config
	out      io.Writer
	logger   logger
	client   *client.Client
	store    session.Store
	file     *store.File
	sm       *session.StateMachine
	router   *session.Router
	pending  *session.PendingInterstitial
	registry *prometheus.Registry
	closers  []func() error
}

func newApp(ctx context.Context, cfg *Config, out, errOut io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		out:      out,
		logger:   newLogger(errOut, cfg.Verbose),
		registry: prometheus.NewRegistry(),
	}

	a.client = client.New(cfg.APIURL,
		client.WithTimeout(cfg.Timeout),
		client.WithEndpoints(cfg.Endpoints),
		client.WithUserAgent(appName),
		client.WithLogger(a.logger.GetLogger("client")),
	)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := a.activitySink()
	if err != nil {
		a.close()
		return nil, err
	}

	a.router = session.NewRouter(nil, session.WithRouterLogger(a.logger.GetLogger("session.router")))
	a.sm = session.NewStateMachine(a.store, a.client, a.client,
		session.WithStateMachineLoggerProvider(a.logger),
		session.WithStateMachineActivitySink(sink),
		session.WithRetainSessionOnTransientBootstrap(),
	)
	a.pending = session.NewPendingInterstitial(a.sm, a.router,
		session.WithPendingLogger(a.logger.GetLogger("session.pending")),
	)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store {
	case StoreMemory:
		a.store = store.NewMemory()
	case StoreSQL:
		dsn := a.cfg.StorePath
		if dsn == "" {
			dsn = "file:sessionctl.db?cache=shared"
		}
		sqlStore, err := store.OpenSQLite(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = sqlStore
		a.closers = append(a.closers, sqlStore.Close)
	default:
		path := a.cfg.StorePath
		if path == "" {
			var err error
			if path, err = store.DefaultFilePath(appName); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "cannot locate the session file")
			}
		}
		a.file = store.NewFile(path, store.WithFileLogger(a.logger.GetLogger("store.file")))
		a.store = a.file
	}
	return nil
}

// activitySink feeds the metrics collector and, when configured, the audit log
func (a *app) activitySink() (session.ActivitySink, error) {
	sinks := session.MultiActivitySink{metrics.NewCollector(a.registry)}
	if a.cfg.AuditLog == "" {
		return sinks, nil
	}

	f, err := os.OpenFile(a.cfg.AuditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "cannot open the audit log").
			WithMetadata(map[string]any{"path": a.cfg.AuditLog})
	}
	a.closers = append(a.closers, f.Close)

	return append(sinks, activitymap.NewJSONLines(f, activitymap.WithObjectID(appName))), nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
}

// view evaluates the guard for p and calls render only when the view may be
// shown. Other outcomes are printed and reported as an error.
func (a *app) view(p string, render func() error) error {
	decision := a.router.Decide(a.sm.Snapshot(), p)
	switch decision.Outcome {
	case session.OutcomeRender:
		return render()
	case session.OutcomeInterstitial:
		if view, ok := a.pending.View(); ok {
			views.Pending(a.out, view)
		}
		return errPending
	default:
		views.Decision(a.out, p, decision)
		return fmt.Errorf("%s is not available: %s", p, decision.Reason)
	}
}

// userError turns an operation error into what the user should read
func userError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", session.UserMessage(err, fallback))
}
