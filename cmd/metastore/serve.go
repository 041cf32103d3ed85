package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nainya/metastore/internal/config"
	"github.com/nainya/metastore/internal/logger"
	"github.com/nainya/metastore/internal/metrics"
	"github.com/nainya/metastore/internal/server"
)

func newServeCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		port   int
		dbPath string
	)

	ccmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metastore gRPC server",
		Long: `
Opens the metadata database and serves the MetadataService over gRPC.
Metrics, health and pprof are served over HTTP on the metrics port.
`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if c.Flags().Changed("db") {
				cfg.Storage.Path = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(c.Context(), cfg, stdout)
		},
	}

	flags := ccmd.Flags()
	flags.IntVar(&port, "port", 50051, "The server port")
	flags.StringVar(&dbPath, "db", "metastore.db", "Database file path")
	return ccmd
}

func serve(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: stdout,
	})
	log := logger.GetGlobalLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	keys := cfg.KeyScheme()
	log.LogServerStart(cfg.Server.Port, cfg.Storage.Path, keys.VersionedTypes)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv, err := server.NewServer(server.Options{
		DBPath:      cfg.Storage.Path,
		Bucket:      cfg.Storage.Bucket,
		LockTimeout: time.Duration(cfg.Storage.LockTimeout),
		Keys:        keys,
		Metrics:     m,
		Logger:      log,
	})
	if err != nil {
		lis.Close()
		return err
	}
	defer srv.Close()

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
		grpc.MaxRecvMsgSize(cfg.Server.MaxMessageBytes),
		grpc.MaxSendMsgSize(cfg.Server.MaxMessageBytes),
	)
	server.RegisterMetadataServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(server.MetadataServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	var obs *server.ObservabilityServer
	if cfg.Server.MetricsPort > 0 {
		obs = server.NewObservabilityServer(cfg.Server.MetricsPort, reg, srv.Ready, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error("Observability server stopped").Err(err).Send()
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()
	log.LogServerReady(cfg.Server.Port)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	log.LogServerShutdown()
	healthServer.Shutdown()

	timeout := time.Duration(cfg.Server.ShutdownTimeout)
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		log.Warn("Graceful stop timed out, closing connections").Dur("timeout", timeout).Send()
		grpcServer.Stop()
	}

	if obs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
