package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/consolidate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Consolidate short-term memories into long-term storage",
		Long: "Runs one consolidation pass for the agent. With --auto, runs the " +
			"fixed automatic policy for one or more agents instead.",
		Run: runConsolidate,
	}

	cmd.Flags().String("strategy", "", "Strategy: summarize, promote, merge, or archive (default summarize)")
	cmd.Flags().Float64("min-importance", -1, "Minimum importance for candidates (default 0.4)")
	cmd.Flags().Duration("max-age", 0, "Minimum age before a record is eligible (default 24h)")
	cmd.Flags().Bool("auto", false, "Run the automatic consolidation policy")
	cmd.Flags().StringSlice("agents", nil, "Agent ids for --auto (default: the current agent)")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	strategy, _ := cmd.Flags().GetString("strategy")
	minImportance, _ := cmd.Flags().GetFloat64("min-importance")
	auto, _ := cmd.Flags().GetBool("auto")
	agents, _ := cmd.Flags().GetStringSlice("agents")

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	if auto {
		if len(agents) == 0 {
			agents = []string{getAgentID()}
		}
		results := e.co.RunAutoConsolidation(cmd.Context(), agents)
		b, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(b))
		return
	}

	req := consolidate.Request{
		AgentID:  getAgentID(),
		Strategy: consolidate.Strategy(strategy),
	}
	if minImportance >= 0 {
		req.MinImportance = &minImportance
	}
	if cmd.Flags().Changed("max-age") {
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		req.MaxAge = &maxAge
	}

	result, err := e.co.Consolidate(cmd.Context(), req)
	if err != nil {
		exitErr("consolidate", err)
	}

	fmt.Println(result.Summary)
	fmt.Printf("took %s\n", result.Duration.Round(time.Millisecond))
}
