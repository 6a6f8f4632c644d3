package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/dependency"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

const shutdownTimeout = 30 * time.Second

type Server struct {
	cfg  *config.Configuration
	deps *dependency.Manager
	http *http.Server
}

// New connects the infrastructure the configuration asks for and builds
// the router.
func New(cfg *config.Configuration) (*Server, error) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	var (
		mongodb     *clients.MongoDB
		redisClient *clients.RedisClient
		rabbitMQ    *clients.RabbitMQ
		err         error
	)

	if dependency.NeedsMongo(cfg.Storage.Driver) {
		if mongodb, err = clients.NewMongoDB(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
	}

	if dependency.NeedsRedis(cfg.Storage.Driver) {
		if redisClient, err = clients.NewRedisClient(&cfg.Redis); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if cfg.Queue.RabbitMQ.Enabled {
		rabbitMQ, err = clients.NewRabbitMQ(&cfg.Queue.RabbitMQ)
		if err == nil {
			err = rabbitMQ.SetupExchange()
		}
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, activity events disabled")
			if rabbitMQ != nil {
				_ = rabbitMQ.Close()
			}
			rabbitMQ = nil
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	deps, err := dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg)
	if err != nil {
		return nil, err
	}
	SetupRoutes(deps)

	return &Server{
		cfg:  cfg,
		deps: deps,
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		},
	}, nil
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.sweepIdleClients(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.http.Addr).Info("Server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.release()
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// SSE streams only end once their subscribers are closed.
	s.deps.ChatHub.Close()
	err := s.http.Shutdown(shutdownCtx)
	s.release()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}

func (s *Server) release() {
	s.deps.Close()
	if s.deps.Mongodb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.deps.Mongodb.Close(ctx)
	}
}

func (s *Server) sweepIdleClients(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Portal.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.deps.Clients.Sweep(s.cfg.Portal.ClientIdle()); dropped > 0 {
				log.WithFields(logrus.Fields{
					"dropped": dropped,
					"active":  s.deps.Clients.Len(),
				}).Info("Dropped idle portal clients")
			}
		}
	}
}
