package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add-global [content]",
		Short: "Add a house-knowledge memory shared by every conversation",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAddGlobal,
	}

	cmd.Flags().StringSliceP("tag", "t", nil, "Tag for the memory (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runAddGlobal(cmd *cobra.Command, args []string) {
	tags, _ := cmd.Flags().GetStringSlice("tag")

	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := admin.CreateGlobal(cmd.Context(), actorFlag, strings.Join(args, " "), tags)
	if err != nil {
		exitErr("add-global", err)
	}

	b, _ := json.Marshal(m)
	fmt.Println(string(b))
}
