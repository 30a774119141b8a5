package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/sim"
)

// EnvFactory builds the environment owned by one session.
type EnvFactory func(sessionID string) (*sim.Environment, error)

// Server exposes environments to remote trainers over websocket.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	factory    EnvFactory
	auth       TokenAuth

	// Session management
	sessions    sync.Map // map[string]*Session
	clientCount int64    // atomic

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	MaxClients int    `yaml:"max_clients" json:"max_clients"`

	// MaxMessageSize bounds a single client message in bytes.
	MaxMessageSize int64         `yaml:"max_message_size" json:"max_message_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Health monitoring
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
	ClientTimeout       time.Duration `yaml:"client_timeout" json:"client_timeout"`

	// Token, when set, must be presented by every client.
	Token string `yaml:"token" json:"-"`
	// Seed is the base seed of every session's environment.
	Seed uint64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxClients:          64,
		MaxMessageSize:      64 * 1024,
		WriteTimeout:        10 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		ClientTimeout:       5 * time.Minute,
		Seed:                1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: empty listen_addr", ErrInvalidConfig)
	case c.MaxClients < 1:
		return fmt.Errorf("%w: max_clients must be positive", ErrInvalidConfig)
	case c.MaxMessageSize < 64:
		return fmt.Errorf("%w: max_message_size too small", ErrInvalidConfig)
	case c.HealthCheckInterval <= 0 || c.ClientTimeout <= 0:
		return fmt.Errorf("%w: health_check_interval and client_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewServer creates a server. Environments are built by factory, one per
// connection.
func NewServer(config Config, factory EnvFactory, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	server := &Server{
		config:   config,
		factory:  factory,
		auth:     TokenAuth{Secret: config.Token},
		logger:   logger.With(log.String("component", "server")),
		stopChan: make(chan struct{}),
	}

	server.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return server
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/env", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))

	s.startWorkers()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Serve failed", log.Error(err))
		}
	}()

	return nil
}

// Addr is the bound listen address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server and disconnects every session.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	close(s.stopChan)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Hijacked websocket connections are not closed by Shutdown.
	s.sessions.Range(func(_, value any) bool {
		value.(*Session).close()
		return true
	})

	s.stopWorkers()

	s.logger.Info("Server stopped")

	return err
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	var err error
	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err = s.Stop(ctx); errors.Is(err, ErrServerNotRunning) {
			err = nil
		}
	}

	s.logger.Info("Server closed")

	return err
}

// Stats contains server statistics
type Stats struct {
	ClientCount int64 `json:"client_count"`
	Running     bool  `json:"running"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount: atomic.LoadInt64(&s.clientCount),
		Running:     atomic.LoadInt32(&s.running) == 1,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.GetStats())
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers() {
	s.workerGroup.Add(1)

	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor()
	}()
}

func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}

// healthMonitor disconnects sessions idle for longer than ClientTimeout.
func (s *Server) healthMonitor() {
	s.logger.Debug("Health monitor started")

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks()
		case <-s.stopChan:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

func (s *Server) performHealthChecks() {
	now := time.Now().Unix()
	timeoutSeconds := int64(s.config.ClientTimeout.Seconds())

	disconnected := 0
	s.sessions.Range(func(key, value any) bool {
		session := value.(*Session)
		if now-atomic.LoadInt64(&session.LastSeen) > timeoutSeconds {
			s.logger.Info("Disconnecting inactive client", log.String("session", key.(string)))
			session.close()
			disconnected++
		}
		return true
	})

	if disconnected > 0 {
		s.logger.Info("Health check completed",
			log.Int("disconnected_clients", disconnected),
			log.Int64("active_clients", atomic.LoadInt64(&s.clientCount)))
	}
}
