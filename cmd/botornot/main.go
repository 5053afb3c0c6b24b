// Command botornot runs the bot-or-not game server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "botornot",
	Short: "Group chat game where players guess which participant is an AI",
	Long: `botornot serves a browser chat room. Every room holds one simulated
participant driven by a language model; players chat, then vote on who they
think the bot is.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, modelsCmd, announceCmd, roomsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
