package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory by id",
		Long:  "Retrieve a memory by id, checking the short-term tier first. A long-term hit counts as an access.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	id := args[0]

	e, err := openEnv()
	if err != nil {
		exitErr("open memory", err)
	}
	defer e.Close()

	if mem := e.stm.Get(id); mem != nil {
		b, _ := json.MarshalIndent(mem, "", "  ")
		fmt.Println(string(b))
		return
	}

	mem, err := e.ltm.GetAndTouch(cmd.Context(), id)
	if err != nil {
		exitErr("get", err)
	}
	if mem == nil {
		exitErr("get", fmt.Errorf("memory not found: %s", id))
	}
	b, _ := json.MarshalIndent(mem, "", "  ")
	fmt.Println(string(b))
}
