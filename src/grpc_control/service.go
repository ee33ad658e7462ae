package grpc_control

import (
	"fmt"
	"net"
	"sync"

	"market-pulse/src/logger"
	"market-pulse/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// OverallService is the health service name that reports the whole process.
const OverallService = ""

// ControlService exposes per-feed health over the standard gRPC health
// protocol. It is the fetch observer of every feed poller: a feed is SERVING
// after a successful fetch and NOT_SERVING after a failed one. The overall
// service stays SERVING until every feed is failing.
type ControlService struct {
	Config *models.MConfig
	Logger *logger.Logger
	Health *health.Server

	mu      sync.Mutex
	failing map[string]bool
	feeds   []string
	server  *grpc.Server
}

// -----------------------------------------------------------------------------

// NewControlService registers feeds with status UNKNOWN until their first
// fetch completes.
func NewControlService(cfg *models.MConfig, feeds []string, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &ControlService{
		Config:  cfg,
		Logger:  log,
		Health:  health.NewServer(),
		failing: make(map[string]bool),
		feeds:   append([]string(nil), feeds...),
	}

	s.Health.SetServingStatus(OverallService, healthpb.HealthCheckResponse_SERVING)
	for _, name := range feeds {
		s.Health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
	}
	return s
}

// -----------------------------------------------------------------------------

func (s *ControlService) FeedSucceeded(name string) {
	s.mu.Lock()
	wasFailing := s.failing[name]
	delete(s.failing, name)
	s.mu.Unlock()

	if wasFailing {
		s.Logger.Info("gRPC health: feed %s recovered", name)
	}
	s.Health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	s.updateOverall()
}

// -----------------------------------------------------------------------------

func (s *ControlService) FeedFailed(name string, err error) {
	s.mu.Lock()
	s.failing[name] = true
	s.mu.Unlock()

	s.Logger.Debug("gRPC health: feed %s not serving: %v", name, err)
	s.Health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	s.updateOverall()
}

// -----------------------------------------------------------------------------

func (s *ControlService) updateOverall() {
	s.mu.Lock()
	allFailing := len(s.feeds) > 0 && len(s.failing) >= len(s.feeds)
	s.mu.Unlock()

	if allFailing {
		s.Health.SetServingStatus(OverallService, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.Health.SetServingStatus(OverallService, healthpb.HealthCheckResponse_SERVING)
}

// -----------------------------------------------------------------------------

// Start listens on the configured gRPC address and serves until Stop.
func (s *ControlService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Logger.Info("gRPC health service listening on %s", addr)
	return s.Serve(lis)
}

// -----------------------------------------------------------------------------

// Serve serves on an existing listener.
func (s *ControlService) Serve(lis net.Listener) error {
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, s.Health)
	reflection.Register(server)

	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	return server.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop marks every service NOT_SERVING and drains the server.
func (s *ControlService) Stop() {
	s.Health.Shutdown()

	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server != nil {
		server.GracefulStop()
	}
}
