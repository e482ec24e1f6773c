package router

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Router owns the gRPC server that exposes a Server.
type Router struct {
	listenAddr string
	grpcServer *grpc.Server
	log        *logrus.Entry
}

// New creates a Router serving srv on listenAddr.
func New(listenAddr string, srv RouterServer, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "grpc")

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(entry)))
	RegisterRouterServer(grpcServer, srv)

	// Enable gRPC reflection for grpcurl
	reflection.Register(grpcServer)

	return &Router{
		listenAddr: listenAddr,
		grpcServer: grpcServer,
		log:        entry,
	}
}

// Start listens on the configured address and serves until Stop.
func (r *Router) Start() error {
	lis, err := net.Listen("tcp", r.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.listenAddr, err)
	}
	return r.Serve(lis)
}

// Serve serves on an existing listener until Stop.
func (r *Router) Serve(lis net.Listener) error {
	r.log.Infof("Starting router on %s", lis.Addr())
	if err := r.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the router.
func (r *Router) Stop() {
	r.log.Info("Stopping router")
	r.grpcServer.GracefulStop()
}

func loggingInterceptor(log *logrus.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("Request failed")
		} else {
			entry.Debug("Request served")
		}
		return resp, err
	}
}
