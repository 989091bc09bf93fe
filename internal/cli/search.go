package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/longterm"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search long-term memories",
		Long:  "Case-insensitive substring search over long-term summaries and details.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("project", "", "Restrict to a project (unscoped records still match)")
	cmd.Flags().String("workspace", "", "Restrict to a workspace (unscoped records still match)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default 10)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	project, _ := cmd.Flags().GetString("project")
	workspace, _ := cmd.Flags().GetString("workspace")
	limit, _ := cmd.Flags().GetInt("limit")

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	results, err := e.ltm.Search(cmd.Context(), longterm.SearchParams{
		AgentID:     getAgentID(),
		Text:        strings.Join(args, " "),
		ProjectID:   project,
		WorkspaceID: workspace,
		Limit:       limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
