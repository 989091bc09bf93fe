package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/coordinator"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query memories across both tiers",
		Run:   runQuery,
	}

	cmd.Flags().StringP("session", "s", "", "Filter by session id (short-term only)")
	cmd.Flags().StringP("category", "c", "", "Filter by category")
	cmd.Flags().String("workspace", "", "Filter by workspace id")
	cmd.Flags().StringSliceP("tags", "t", nil, "Filter by tags, any overlap (short-term only)")
	cmd.Flags().Float64P("min-importance", "m", 0, "Minimum importance")
	cmd.Flags().IntP("limit", "l", 0, "Max results per tier (default 10)")
	cmd.Flags().String("scope", "", "Restrict to one tier: short-term or long-term")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	category, _ := cmd.Flags().GetString("category")
	workspace, _ := cmd.Flags().GetString("workspace")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	minImportance, _ := cmd.Flags().GetFloat64("min-importance")
	limit, _ := cmd.Flags().GetInt("limit")
	scope, _ := cmd.Flags().GetString("scope")

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	// Bare scope without filters lists the agent's memories per tier
	if scope != "" && session == "" && category == "" && workspace == "" &&
		len(tags) == 0 && minImportance == 0 {
		out, err := e.co.MemoriesByAgent(cmd.Context(), getAgentID(), scope)
		if err != nil {
			exitErr("query", err)
		}
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return
	}

	res, err := e.co.QueryMemories(cmd.Context(), coordinator.QueryRequest{
		AgentID:       getAgentID(),
		SessionID:     session,
		Category:      category,
		WorkspaceID:   workspace,
		Tags:          tags,
		MinImportance: minImportance,
		Limit:         limit,
	})
	if err != nil {
		exitErr("query", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
