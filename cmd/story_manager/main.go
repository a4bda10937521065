// Package main provides the entry point for the Story Manager HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "story_manager",
	Short: "Story Manager HTTP API Server",
	Long: `Story Manager stores multilingual stories with text and audio content, conversation openers and user profiles, and exposes them over a REST API.

Settings come from the environment (a .env file is loaded first) and may be overridden by a JSON file passed with --config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values override the environment)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
