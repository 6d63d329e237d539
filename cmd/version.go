/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"linebridge/pkg/bridge"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the service version",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		fmt.Printf("linebridge v%s\n", bridge.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
