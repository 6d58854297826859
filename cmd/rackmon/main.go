package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/rackmon/pkg/api"
	"github.com/cuemby/rackmon/pkg/ceph"
	"github.com/cuemby/rackmon/pkg/config"
	"github.com/cuemby/rackmon/pkg/correlator"
	"github.com/cuemby/rackmon/pkg/kube"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/cuemby/rackmon/pkg/storage"
	"github.com/cuemby/rackmon/pkg/zones"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rackmon",
	Short: "rackmon - rack resiliency monitor",
	Long: `rackmon aggregates the zone topology of the management rack from
Kubernetes node labels and the Ceph placement tree, and keeps the registry
of critical services that must survive the loss of a rack.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"rackmon version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("server", "localhost:8080", "rackmon API address")
	rootCmd.PersistentFlags().StringP("output", "o", outputJSON, "Output format: json or yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(zonesCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(healthCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rackmon API server",
	Long: `Run the HTTP API server, and the gRPC health service when
server.grpc_address is configured.

Configuration is read from --config (YAML) and RACKMON_* environment
variables, e.g. RACKMON_CEPH_HOST=ncn-m002.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML config file")
	serveCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", false, "Output logs in JSON format")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.JSON,
	})

	clientset, err := kube.NewClientset(cfg.Kubernetes.Kubeconfig)
	if err != nil {
		return err
	}

	var store registry.ConfigStore
	switch cfg.Registry.Backend {
	case config.BackendBolt:
		bolt, err := storage.NewBoltStore(cfg.Registry.DataDir)
		if err != nil {
			return err
		}
		defer bolt.Close()
		store = bolt
	default:
		store = kube.NewConfigMapStore(clientset)
	}

	nodes := kube.NewTopologyMapper(clientset, cfg.Kubernetes.Classifier())
	runner := ceph.NewSSHRunner(cfg.Ceph.Host).WithTimeout(cfg.Ceph.Timeout)
	racks := ceph.NewTopologyMapper(ceph.NewCLISource(runner), cfg.Ceph.StoragePrefix)

	zoneSvc := zones.NewService(nodes, racks)
	reg := registry.New(store, correlator.New(nodes, kube.NewWorkloads(clientset)), cfg.Registry.Records())

	checker := metrics.DefaultHealthChecker()
	checker.SetVersion(Version)

	log.Logger.Info().
		Str("version", Version).
		Str("addr", cfg.Server.Address).
		Str("registry_backend", cfg.Registry.Backend).
		Str("ceph_host", cfg.Ceph.Host).
		Msg("Starting rackmon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.NewServer(cfg.Server, zoneSvc, reg, checker).Start(ctx); err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	log.Info("Shutdown complete")
	return nil
}
