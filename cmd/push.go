/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linebridge/pkg/config"
	"linebridge/pkg/line"

	"github.com/spf13/cobra"
)

var pushTo string

// pushCmd represents the push command
var pushCmd = &cobra.Command{
	Use:   "push [text]",
	Short: "Push a text message to a user",
	Long:  "Sends a push message through the platform messaging API, outside any webhook reply flow. Useful for smoke-testing credentials.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		if strings.TrimSpace(cfg.Line.ChannelAccessToken) == "" {
			fmt.Println("channel access token is required (LINEBRIDGE_LINE_CHANNEL_ACCESS_TOKEN or LINE_CHANNEL_ACCESS_TOKEN)")
			return
		}

		client, err := line.NewClient(cfg.Line.APIBase, cfg.Line.ChannelAccessToken)
		if err != nil {
			fmt.Printf("failed to initialize messaging client: %v\n", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		text := strings.Join(args, " ")
		if err := client.Push(ctx, pushTo, text); err != nil {
			fmt.Printf("push failed: %v\n", err)
			return
		}

		fmt.Println("message pushed")
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().StringVar(&pushTo, "to", "", "recipient user ID")
	_ = pushCmd.MarkFlagRequired("to")
}
