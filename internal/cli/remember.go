package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/coordinator"
	"github.com/agentstack/tiermem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store a memory",
		Long:  "Store a memory in the short-term tier (default) or directly in long-term storage. Content can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().String("type", "short-term", "Tier: short-term or long-term")
	cmd.Flags().StringP("session", "s", "", "Session id (short-term only; default \"default\")")
	cmd.Flags().StringP("category", "c", "interaction", "Category: interaction, lesson, challenge, feedback, ...")
	cmd.Flags().StringP("importance", "i", "", "Importance in [0,1] (default 0.5 short-term, 0.7 long-term)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("keywords", "", "Comma-separated keywords")
	cmd.Flags().String("workspace", "", "Workspace id")
	cmd.Flags().String("project", "", "Project id")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("type")
	session, _ := cmd.Flags().GetString("session")
	category, _ := cmd.Flags().GetString("category")
	importanceStr, _ := cmd.Flags().GetString("importance")
	tagsStr, _ := cmd.Flags().GetString("tags")
	keywordsStr, _ := cmd.Flags().GetString("keywords")
	workspace, _ := cmd.Flags().GetString("workspace")
	project, _ := cmd.Flags().GetString("project")

	// Content: positional arg first, then stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("remember", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var importance *float64
	if importanceStr != "" {
		var v float64
		if _, err := fmt.Sscanf(importanceStr, "%f", &v); err != nil {
			exitErr("remember", fmt.Errorf("invalid importance %q", importanceStr))
		}
		importance = &v
	}

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	created, err := e.co.CreateMemory(cmd.Context(), coordinator.CreateRequest{
		Type:       tier,
		AgentID:    getAgentID(),
		SessionID:  session,
		Category:   category,
		Content:    strings.TrimSpace(content),
		Importance: importance,
		Metadata: model.Metadata{
			Tags:        splitCSV(tagsStr),
			Keywords:    splitCSV(keywordsStr),
			WorkspaceID: workspace,
			ProjectID:   project,
		},
	})
	if err != nil {
		exitErr("remember", err)
	}

	b, _ := json.Marshal(created)
	fmt.Println(string(b))
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
