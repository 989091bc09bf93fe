package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/model"
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export long-term memories as JSON",
		Long:  "Writes the agent's long-term memories to a file, or stdout when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runExport,
	}
	RootCmd.AddCommand(exportCmd)

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import long-term memories from JSON",
		Long:  "Reads records from a file (or stdin) and inserts the ones not already present.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}
	RootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	records, err := e.ltm.ExportAll(cmd.Context(), getAgentID())
	if err != nil {
		exitErr("export", err)
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		exitErr("encode export", err)
	}

	if len(args) == 0 {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(args[0], b, 0o644); err != nil {
		exitErr("write export", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d memories to %s\n", len(records), args[0])
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitErr("read import", err)
	}

	var records []*model.LongTermMemory
	if err := json.Unmarshal(data, &records); err != nil {
		exitErr("decode import", goerr.Wrap(err, "invalid import file"))
	}

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	n, err := e.ltm.Import(cmd.Context(), records)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Fprintf(os.Stderr, "imported %d of %d memories\n", n, len(records))
}
