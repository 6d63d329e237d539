/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"linebridge/pkg/bridge"
	"linebridge/pkg/config"
	"linebridge/pkg/line"
	"linebridge/pkg/logger"
	"linebridge/pkg/provider/openaigw"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook bridge service",
	Long:  "Runs the linebridge HTTP service: verifies webhook signatures, relays text messages to the AI gateway, and replies through the platform messaging API.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("invalid config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		lineClient, err := line.NewClient(cfg.Line.APIBase, cfg.Line.ChannelAccessToken)
		if err != nil {
			log.Error("Failed to initialize messaging client", "error", err)
			return
		}

		gatewayClient, err := openaigw.New(cfg.Gateway)
		if err != nil {
			log.Error("Failed to initialize gateway client", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := bridge.New(cfg, lineClient, gatewayClient, log)
		if err != nil {
			log.Error("Failed to initialize bridge", "error", err)
			return
		}

		log.Info("Bridge starting", "port", cfg.Server.Port, "gateway", cfg.Gateway.BaseURL, "model", cfg.Gateway.Model)
		if err := server.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Bridge runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
