package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"desk-ledger/internal/bootstrap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "desk-ledger",
		Short:        "Room score ledger service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSweepCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// 启动应用组件
			app.Start()

			// 设置优雅关闭
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			logrus.Info("Shutdown signal received...")

			app.Shutdown()
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired rooms once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			before := time.Now().UTC().Add(-grace)
			deleted, err := app.RoomService.SweepExpired(ctx, before)
			if err != nil {
				return err
			}
			app.Log.WithFields(logrus.Fields{"deleted": deleted, "before": before}).Info("Expired rooms swept")
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "keep rooms this long after they expire")
	return cmd
}
