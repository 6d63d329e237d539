/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linebridge",
	Short: "Relay chat-platform webhooks to a local AI gateway",
	Long: `linebridge receives signed webhook events from a LINE-style chat platform,
relays text messages to a local OpenAI-compatible AI gateway, and sends the
generated reply back through the platform's messaging API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
