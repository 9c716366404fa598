package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go_request_guard/app/grpc_guard_app"
	"go_request_guard/app/http_guard_app"
	"go_request_guard/internal/bootstrap"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/utils"

	"github.com/go-chassis/go-chassis/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

var (
	serveHTTPAddr string
	serveGRPCAddr string
	serveUpstream string
	serveAdmin    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the guard gateway",
	Long: `Start the HTTP gateway that runs the CORS evaluator and the header validator
in front of the upstream payment API. Optionally also serves a guarded gRPC
endpoint and the go-chassis admin API, and hot-reloads the config file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "listen", "", "HTTP listen address (overrides server.httpAddr)")
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc-listen", "", "gRPC listen address (overrides server.grpcAddr)")
	serveCmd.Flags().StringVar(&serveUpstream, "upstream", "", "Upstream URL (overrides upstream.url)")
	serveCmd.Flags().BoolVar(&serveAdmin, "admin", false, "Start the admin API (overrides server.adminEnabled)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	log := utils.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guard, cleanup, err := bootstrap.NewGuard(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building guard: %w", err)
	}
	defer cleanup()

	next := http_guard_app.DecisionHandler()
	if cfg.Upstream.URL != "" {
		if next, err = http_guard_app.NewUpstreamProxy(cfg.Upstream, log); err != nil {
			return err
		}
	}
	mw := http_guard_app.NewGuardMiddleware(guard.Cors, guard.Headers,
		http_guard_app.WithHyperswitchPrefix(cfg.Upstream.HyperswitchPrefix))
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           http_guard_app.NewGateway(mw, next),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.AdminEnabled {
		if err := startAdmin(guard, log); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(ctx, httpSrv, log) })
	if cfg.Server.GRPCAddr != "" {
		g.Go(func() error { return serveGRPC(ctx, cfg.Server.GRPCAddr, guard, log) })
	}
	if path, _ := configs.ConfigPath(); fileExists(path) {
		w := configs.NewWatcher(path, cfg.Server.WatchInterval, guard.ReplaceConfig, log)
		g.Go(func() error {
			w.Watch(ctx)
			return nil
		})
	}
	if cfg.RuleStore.SyncInterval > 0 {
		g.Go(func() error {
			syncRules(ctx, guard, cfg.RuleStore.SyncInterval, log)
			return nil
		})
	}

	log.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.Environment,
		"http":        cfg.Server.HTTPAddr,
		"grpc":        cfg.Server.GRPCAddr,
		"upstream":    cfg.Upstream.URL,
		"rule_store":  cfg.RuleStore.Driver,
	}).Info("request guard started")

	return g.Wait()
}

func applyServeFlags(cmd *cobra.Command, cfg *configs.GuardConfig) {
	if cmd.Flags().Changed("listen") {
		cfg.Server.HTTPAddr = serveHTTPAddr
	}
	if cmd.Flags().Changed("grpc-listen") {
		cfg.Server.GRPCAddr = serveGRPCAddr
	}
	if cmd.Flags().Changed("upstream") {
		cfg.Upstream.URL = serveUpstream
	}
	if cmd.Flags().Changed("admin") {
		cfg.Server.AdminEnabled = serveAdmin
	}
}

func serveHTTP(ctx context.Context, srv *http.Server, log logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func serveGRPC(ctx context.Context, addr string, guard *bootstrap.Guard, log logrus.FieldLogger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		skipHealth(grpc_guard_app.UnaryServerInterceptor(guard.Cors, guard.Headers)),
	))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		log.Info("shutting down grpc server")
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// skipHealth lets probes reach the health service without browser or API headers.
func skipHealth(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/"+healthpb.Health_ServiceDesc.ServiceName+"/") {
			return handler(ctx, req)
		}
		return next(ctx, req, info, handler)
	}
}

// startAdmin serves the admin API through go-chassis. chassis reads its listen address
// from CHASSIS_CONF_DIR and stops on its own signal handling.
func startAdmin(guard *bootstrap.Guard, log logrus.FieldLogger) error {
	controller := http_guard_app.NewGuardController(guard.Cors, guard.Headers, guard.Rules)
	chassis.RegisterSchema("rest", controller)
	if err := chassis.Init(); err != nil {
		return fmt.Errorf("init go-chassis: %w", err)
	}
	if err := http_guard_app.RegisterMetrics(); err != nil {
		log.WithError(err).Warn("admin metrics disabled")
	}
	go func() {
		if err := chassis.Run(); err != nil {
			log.WithError(err).Error("admin api stopped")
		}
	}()
	return nil
}

func syncRules(ctx context.Context, guard *bootstrap.Guard, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := guard.Sync.LoadRules(ctx); err != nil {
				log.WithError(err).Error("rule sync failed")
			}
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
