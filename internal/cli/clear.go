package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/model"
)

func init() {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear a session's short-term memories",
		Run:   runClear,
	}
	clearCmd.Flags().StringP("session", "s", model.DefaultSessionID, "Session id")
	RootCmd.AddCommand(clearCmd)

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired short-term memories",
		Run:   runCleanup,
	}
	RootCmd.AddCommand(cleanupCmd)
}

func runClear(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	n := e.co.ClearSession(cmd.Context(), getAgentID(), session)
	fmt.Printf("cleared %d memories from session %q\n", n, session)
}

func runCleanup(cmd *cobra.Command, args []string) {
	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	n := e.stm.CleanupExpired()
	fmt.Printf("removed %d expired memories\n", n)
}
