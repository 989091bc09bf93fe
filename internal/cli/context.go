package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble memory context for a session",
		Long: "Gathers recent interactions plus relevant lessons, challenges, " +
			"and feedback into a single context bundle.",
		Args: cobra.MaximumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().StringP("session", "s", model.DefaultSessionID, "Session id")
	cmd.Flags().Bool("summary", false, "Print only the one-line summary")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	summaryOnly, _ := cmd.Flags().GetBool("summary")

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	mc, err := e.co.MemoryContext(cmd.Context(), getAgentID(), session, query)
	if err != nil {
		exitErr("assemble context", err)
	}

	if summaryOnly {
		fmt.Println(mc.Summary)
		return
	}

	b, _ := json.MarshalIndent(mc, "", "  ")
	fmt.Println(string(b))
}
