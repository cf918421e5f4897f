package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/management"
	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/mock"
)

var (
	agentAddr string
	agentSeed int64
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the mock router behind the management query endpoint",
	Long: "agent serves simulated links, connections and addresses so the " +
		"management backend can be tried without a router.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		var opts []mock.Option
		if cmd.Flags().Changed("seed") {
			opts = append(opts, mock.WithSeed(agentSeed))
		}
		srv := &http.Server{
			Addr:              agentAddr,
			Handler:           management.NewHandler(mock.New(opts...)),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("agent shutdown", zap.Error(err))
			}
		}()

		log.Info("mock agent listening", zap.String("addr", agentAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	agentCmd.Flags().StringVar(&agentAddr, "addr", ":5673", "listen address")
	agentCmd.Flags().Int64Var(&agentSeed, "seed", 0, "random seed for reproducible data")
}
