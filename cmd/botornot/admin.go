package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ruqii/LLMPuzzle/internal/adapter/admin"
)

var (
	rpcAddr      string
	announceRoom string
)

var announceCmd = &cobra.Command{
	Use:   "announce <text>",
	Short: "Broadcast an operator notice to a running server's room",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		delivered, err := newAdminClient().Announce(ctx, announceRoom, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered to %d player(s)\n", delivered)
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the live rooms of a running server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		rooms, err := newAdminClient().Rooms(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROOM\tHUMANS\tPLAYERS")
		for _, r := range rooms {
			fmt.Fprintf(w, "%s\t%d\t%s\n", r.ID, r.Humans, strings.Join(r.Players, ", "))
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{announceCmd, roomsCmd} {
		c.Flags().StringVar(&rpcAddr, "rpc", "", "Admin RPC address (default localhost:RPC_PORT)")
	}
	announceCmd.Flags().StringVar(&announceRoom, "room", "lobby", "Room to announce in")
}

func newAdminClient() *admin.Client {
	addr := rpcAddr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", loadConfig().RPCPort)
	}
	return admin.NewClient(addr)
}
