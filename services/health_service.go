package services

import (
	"context"

	"github.com/norun9/storefront-cartservice/cartstore"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthCheckService implements gRPC health checking over the cart store.
type HealthCheckService struct {
	store cartstore.ICartStore
	healthpb.UnimplementedHealthServer
}

// NewHealthCheckService constructor
func NewHealthCheckService(store cartstore.ICartStore) *HealthCheckService {
	return &HealthCheckService{store: store}
}

// Check reports SERVING while the store answers pings. The empty service name
// and "cartservice" are known; anything else is NOT_FOUND.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", instrumentationName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if h.store.Ping(ctx) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}
