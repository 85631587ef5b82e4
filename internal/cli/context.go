package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [subject-id]",
		Short: "Show the memory bundle a chat turn would receive",
		Args:  cobra.ExactArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("limit", "l", 8, "Max memories per scope")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	bundle, err := engine.New(s).Context(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("context", err)
	}

	b, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Println(string(b))
}
