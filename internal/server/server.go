package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/karimzahran/agora/internal/auth"
	"github.com/karimzahran/agora/internal/metrics"
	"github.com/karimzahran/agora/internal/router"
	"github.com/karimzahran/agora/internal/server/middleware"
	"github.com/karimzahran/agora/pkg/config"
	"github.com/karimzahran/agora/pkg/state"
	"github.com/karimzahran/agora/pkg/state/registry"
	"github.com/karimzahran/agora/pkg/transport"
)

type App struct {
	logger        *slog.Logger
	registry      state.Registry
	eventRouter   *router.EventRouter
	authenticator *auth.Authenticator
	guardStore    GuardStore
	wg            sync.WaitGroup
	http          *http.Server
	config        *config.Config

	ctx context.Context
}

// Deps are the externally constructed collaborators: the identity store and
// the guard's counter store. main wires the configured implementations.
type Deps struct {
	Authenticator *auth.Authenticator
	GuardStore    GuardStore
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, deps Deps) *App {
	reg := registry.NewInMemory(logger)
	eventRouter := router.NewEventRouter(logger, reg)

	app := &App{
		logger:        logger,
		registry:      reg,
		eventRouter:   eventRouter,
		authenticator: deps.Authenticator,
		guardStore:    deps.GuardStore,
		config:        cfg,
		ctx:           rootCtx,
	}

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: app.routes(),
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app
}

// Router exposes the event router so in-process collaborators can fire
// triggers without going through HTTP.
func (a *App) Router() *router.EventRouter {
	return a.eventRouter
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler owns the connection lifecycle: authenticate, admit, wire the
// router, and guarantee cleanup when the transport closes.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	var ip string
	if reqMeta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
		ip = reqMeta.IP
	}
	connLogger := a.logger.With(slog.String("remoteAddr", ip))

	sess := state.NewSession(ip, a.config.Transport.EventRate, a.config.Transport.EventBurst)
	sess.BeginAuth()

	ident, err := a.authenticator.Authenticate(r.Context(), r)
	if err != nil {
		metrics.AuthFailures.Inc()
		sess.MarkClosed()
		connLogger.Warn("connection attempt rejected", slog.Any("error", err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		sess.MarkClosed()
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		sess.ID,
		wsConn,
		transport.ConnectionConfig{
			ReadTimeout: a.config.Transport.ReadTimeout,
			SendBuffer:  a.config.Transport.SendBuffer,
		},
		a.logger,
	)

	if !sess.Activate(ident, conn) {
		conn.Close(errors.New("session no longer admissible"))
		return
	}
	if err := a.registry.Register(sess); err != nil {
		connLogger.Error("Failed to register session", slog.Any("error", err))
		conn.Close(err)
		return
	}
	// first membership: the identity-scoped room for notifications
	if err := a.registry.Join(sess.ID, state.IdentityRoom(ident.ID)); err != nil {
		connLogger.Error("Failed to join identity room", slog.Any("error", err))
		a.teardown(sess)
		conn.Close(err)
		return
	}

	conn.SetOnMessageHandler(a.eventRouter.HandleMessage)
	conn.SetOnDropHandler(metrics.FanoutDrops.Inc)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.teardown(sess)
	})
	metrics.ConnectionsActive.Inc()

	connLogger.Info("session established",
		slog.String("sessID", sess.ID.String()),
		slog.String("identityID", ident.ID),
	)
	conn.Run()
	<-conn.Done()
}

// teardown is the single cleanup path for disconnects of any cause. The
// status CAS makes it run at most once per session.
func (a *App) teardown(sess *state.Session) {
	if !sess.MarkClosed() {
		return
	}
	if err := a.registry.Deregister(sess.ID); err != nil {
		a.logger.Error("Failed to deregister session",
			slog.String("sessID", sess.ID.String()), slog.Any("error", err))
	}
	metrics.ConnectionsActive.Dec()
	a.logger.Info("session closed", slog.String("sessID", sess.ID.String()))
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Closing all active sessions...")
	for _, sess := range a.registry.Sessions() {
		if t := sess.Transport(); t != nil {
			t.Close(errors.New("graceful shutdown"))
		}
	}

	// wait for all connection goroutines to finish their cleanup
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
