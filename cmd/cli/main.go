// Command cli plays bot-or-not from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	room      string
	altScreen bool
)

var rootCmd = &cobra.Command{
	Use:   "cli",
	Short: "Terminal client for bot-or-not",
	Long: `Joins a bot-or-not room over WebSocket. Type to chat; "/vote <name>"
guesses the bot and "/quit" leaves.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8000/ws/game", "Game WebSocket URL")
	rootCmd.Flags().StringVar(&room, "room", "", "Room to join (server default when empty)")
	rootCmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal's alternate screen")
}

func run(cmd *cobra.Command, _ []string) error {
	target, err := gameURL(serverURL, room)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	client, err := dial(ctx, target)
	if err != nil {
		return err
	}

	inbound := make(chan tea.Msg, 256)
	go client.readLoop(inbound)

	opts := []tea.ProgramOption{}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(client, inbound), opts...)
	_, err = p.Run()
	_ = client.Close()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
