// Command alertproxy is the alert-forwarding relay's process
// entrypoint: it loads configuration, opens the rule store, and serves
// the webhook and admin HTTP surface (spec.md §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/alertbridge/relay/internal/config"
	"github.com/alertbridge/relay/internal/forwarder"
	"github.com/alertbridge/relay/internal/logging"
	"github.com/alertbridge/relay/internal/router"
	"github.com/alertbridge/relay/internal/ruleset"
	"github.com/alertbridge/relay/internal/server"
)

const httpShutdownGrace = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "alertproxy",
		Short:         "Relay alert webhooks to downstream targets",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(serveCmd(), validateRulesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func validateRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-rules [path]",
		Short: "Parse and validate a rules document without starting the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := cfg.RulesPath
			if len(args) == 1 {
				path = args[0]
			}
			store := ruleset.NewStore(path, ruleset.WithFs(afero.NewOsFs()))
			rs, err := store.GetRules()
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d route(s), %d pattern(s)\n", len(rs.Routes), len(rs.Patterns))
			return nil
		},
	}
}

func serve(ctx context.Context) error {
	logger := logging.New("alertproxy")
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	storeOpts := []ruleset.Option{
		ruleset.WithFs(afero.NewOsFs()),
		ruleset.WithLogger(logger),
	}
	if cfg.ConfigMapName != "" {
		if persister, err := clusterConfigMapPersister(cfg.Namespace); err == nil {
			storeOpts = append(storeOpts, ruleset.WithConfigMap(cfg.ConfigMapName, persister))
		} else {
			logger.Warn("configmap persistence disabled", zap.Error(err))
		}
	}
	store := ruleset.NewStore(cfg.RulesPath, storeOpts...)
	if _, err := store.GetRules(); err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go store.Watch(watchCtx, cfg.WatchInterval())

	fwd := forwarder.New(logger)
	rt := router.New(store, fwd, router.WithLogger(logger))
	srv := server.New(store, rt, fwd,
		server.WithLogger(logger),
		server.WithBasicAuthFallback(cfg.BasicAuthUser, cfg.BasicAuthPassword),
	)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func clusterConfigMapPersister(namespace string) (ruleset.ConfigMapPersister, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("not running in-cluster: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building kube client: %w", err)
	}
	return ruleset.NewClusterConfigMapPersister(clientset, namespace), nil
}
