package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/config"
	"github.com/HaPhanBaoMinh/kmon/internal/logging"
)

var (
	cfgPath    string
	backend    string
	useMock    bool
	kubeconfig string
	kubeCtx    string
	namespace  string
	interval   time.Duration
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "kmon",
	Short: "Live tables of cluster and router metrics",
	Long: "kmon polls a metrics backend and shows paged, sortable tables with " +
		"per-second rates derived from cumulative counters.",
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgPath, "config", config.DefaultPath(), "path to the kmon YAML config")
	f.StringVar(&backend, "backend", "", "metrics backend: mock, management, kubernetes or prometheus")
	f.BoolVar(&useMock, "mock", false, "use the built-in mock router")
	f.StringVar(&kubeconfig, "kubeconfig", "", "path to kubeconfig")
	f.StringVar(&kubeCtx, "context", "", "kube context")
	f.StringVarP(&namespace, "namespace", "n", "", "namespace to list pods from (all for every namespace)")
	f.DurationVar(&interval, "interval", 0, "poll interval (e.g. 2s)")
	f.StringVar(&logLevel, "log-level", "", "log level")
	f.StringVar(&logFile, "log-file", "", "write logs to this file")

	rootCmd.Flags().String("entity", "", "entity shown on start")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(agentCmd)
}

// loadConfig reads the config file and applies command line overrides. The
// file is only required when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if useMock {
		cfg.Backend = config.BackendMock
	}
	if kubeconfig != "" {
		cfg.Kubernetes.Kubeconfig = kubeconfig
	}
	if kubeCtx != "" {
		cfg.Kubernetes.Context = kubeCtx
	}
	if namespace != "" {
		cfg.Kubernetes.Namespace = namespace
	}
	if interval > 0 {
		cfg.Interval = interval
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
