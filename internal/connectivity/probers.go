package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var errNotServing = errors.New("service not serving")

// HealthChecker is implemented by the REST client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HTTPProber probes the service's GET /health endpoint.
type HTTPProber struct {
	Client HealthChecker
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context) error {
	return p.Client.Health(ctx)
}

// GRPCProber probes a grpc.health.v1 endpoint. SERVING is healthy.
type GRPCProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	addr    string
}

// NewGRPCProber builds a prober for addr. No network I/O happens until the
// first probe; service "" checks the server as a whole.
func NewGRPCProber(addr, service string, logger *slog.Logger) (*GRPCProber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		return nil, errors.New("grpc health address is required")
	}

	kacp := keepalive.ClientParameters{
		Time:                2 * time.Minute,
		Timeout:             10 * time.Second,
		PermitWithoutStream: false,
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc health client for %s: %w", addr, err)
	}

	logger.Info("gRPC health prober configured", "address", addr, "service", service)
	return &GRPCProber{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
		addr:    addr,
	}, nil
}

// Probe implements Prober.
func (p *GRPCProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("grpc health check %s: %w", p.addr, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// Close releases the connection.
func (p *GRPCProber) Close() error {
	return p.conn.Close()
}
