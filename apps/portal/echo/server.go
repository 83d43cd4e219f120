package echoportal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

type (
	// Backend is everything the portal asks of the CEMS API.
	Backend interface {
		auth.Backend
		dashboard.Backend
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Backend        Backend
		Stores         TokenStores
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		sessions *sessions
		errors   chan error
		shutdown chan os.Signal
		stop     chan struct{}
		stopOnce sync.Once
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		sessions: newSessions(deps),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		stop:     make(chan struct{}),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger)
	s.app.Validator = newAppValidator()
	s.app.Debug = conf.Debug

	s.app.Use(s.sessions.middleware)
	registerAuthPages(s.app, conf)
	registerDashboardPages(s.app)

	// anything else goes home
	s.app.Any("/*", func(ctx echo.Context) error {
		return navigate(ctx, auth.PathHome, false)
	})
}

func (s *server) Start() {
	go s.sweepIdleSessions()
	if err := s.app.Start(s.deps.Conf.Portal.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// sweepIdleSessions drops idle sessions until the server stops.
func (s *server) sweepIdleSessions() {
	every := s.sessions.idleTTL / 4
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := s.sessions.sweep(now); n > 0 {
				s.deps.Logger.Debug("idle sessions dropped", n)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	s.halt()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	s.halt()
	return s.app.Close()
}

func (s *server) halt() {
	s.stopOnce.Do(func() {
		close(s.stop)
		signal.Stop(s.shutdown)
	})
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
