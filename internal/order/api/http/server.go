package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/notify/broker"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/app/services"
	"restaurant-orders/internal/xpkg/auth"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/ratelimit"
	"restaurant-orders/internal/xpkg/retry"

	database "restaurant-orders/internal/order/adapter/db"
)

var ErrServerClosed = errors.New("Server closed")

type Server struct {
	cfg         *config.Config
	srv         *http.Server
	orderParams *core.OrderParams
	mylog       logger.Logger

	db          *database.DB
	relay       notify.Relay
	registry    *notify.Registry
	broadcaster *notify.Broadcaster
	limiters    []*ratelimit.Keyed

	ctx    context.Context
	appCtx context.Context
	mu     sync.Mutex
}

func NewServer(ctx, appCtx context.Context, cfg *config.Config, orderParams *core.OrderParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:         ctx,
		appCtx:      appCtx,
		cfg:         cfg,
		orderParams: orderParams,
		mylog:       mylog,
	}
}

// Run connects the database and relay, then serves HTTP, consumes the relay
// and sweeps subscribers until ctx is done or one of them fails.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	s.registry = notify.NewRegistry(s.mylog)
	if err := s.initializeRelay(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Notification relay ready", "transport", s.cfg.Notifications.Transport)

	handler, err := s.Configure()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.orderParams.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	mylog.WithGroup("details").With("port", s.orderParams.Port).Info("server is running")

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(s.startHTTPServer)
	g.Go(func() error { return s.relay.Run(gctx) })
	g.Go(func() error { return s.sweep(gctx) })
	return g.Wait()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()

	var errs []error
	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Wait(shutdownCtx); err != nil {
			s.mylog.Action("broadcast_drain_failed").Error("In-flight notifications did not finish", err)
		}
	}
	if s.registry != nil {
		s.registry.Close()
	}

	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			errs = append(errs, fmt.Errorf("mb close: %w", err))
		} else {
			s.mylog.Action("mb_closed").Info("Message broker closed")
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			errs = append(errs, fmt.Errorf("db close: %w", err))
		} else {
			s.mylog.Action("db_closed").Info("Database closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweep(ctx context.Context) error {
	interval := s.cfg.Notifications.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			removed := s.registry.Sweep()
			pruned := 0
			for _, l := range s.limiters {
				pruned += l.Prune()
			}
			staff, customers, sets := s.registry.Stats()
			s.mylog.Action("registry_sweep").Debug("Swept subscriber registry",
				"removed", removed, "limiters_pruned", pruned,
				"staff", staff, "customers", customers, "sets", sets)
		}
	}
}

func (s *Server) initializeDatabase() error {
	db, err := database.Start(s.appCtx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(s.appCtx); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Server) initializeRelay() error {
	switch s.cfg.Notifications.Transport {
	case "", "local":
		s.relay = notify.NewLocalRelay(s.registry)
	case "rabbitmq":
		mb, err := broker.NewRabbitMQ(s.cfg.RMQ, s.registry, s.mylog)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		s.relay = mb
	case "kafka":
		s.relay = broker.NewKafka(s.cfg.Kafka, s.registry, s.mylog)
	default:
		return fmt.Errorf("unknown notification transport %q", s.cfg.Notifications.Transport)
	}
	return nil
}

// Configure builds the services over the open database and returns the
// HTTP handler.
func (s *Server) Configure() (http.Handler, error) {
	limits := core.DefaultLimits()
	if s.cfg.Orders.MaxItems > 0 {
		limits.MaxItems = s.cfg.Orders.MaxItems
	}
	if s.cfg.Orders.MaxTotal != "" {
		maxTotal, err := decimal.NewFromString(s.cfg.Orders.MaxTotal)
		if err != nil {
			return nil, fmt.Errorf("orders.max_total: %w", err)
		}
		limits.MaxTotal = maxTotal
	}

	store := database.NewStore(s.db.Pool())
	s.broadcaster = notify.NewBroadcaster(store, s.relay, s.cfg.Notifications.BroadcastWait, s.mylog)

	orderService := services.NewOrderService(store, s.broadcaster, s.mylog, services.Options{
		Limits: limits,
		Retry: retry.Policy{
			Retries:     s.cfg.Orders.Retries,
			Initial:     s.cfg.Orders.RetryBackoff,
			MaxInterval: time.Second,
		},
	})

	verifier := auth.NewVerifier(s.cfg.Auth.JWTSecret)
	admission := notify.NewAdmission(verifier, orderService,
		ratelimit.NewKeyed(s.cfg.Notifications.AdmissionQuota, s.cfg.Notifications.AdmissionWindow),
		services.ValidPhone, s.mylog)
	publicLimiter := ratelimit.NewKeyed(s.cfg.Orders.PublicQuota, s.cfg.Orders.PublicWindow)
	s.limiters = []*ratelimit.Keyed{admission.Limiter(), publicLimiter}

	return NewHandler(Deps{
		Orders:        orderService,
		Verifier:      verifier,
		Admission:     admission,
		Registry:      s.registry,
		PublicLimiter: publicLimiter,
		DB:            s.db,
		PageLen:       s.cfg.Orders.DefaultPageLen,
		SendBuffer:    s.cfg.Notifications.SendBuffer,
		Log:           s.mylog,
	}), nil
}
