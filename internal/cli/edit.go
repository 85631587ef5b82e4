package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "edit [id] [content]",
		Short: "Rewrite a memory's content",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEdit,
	}

	RootCmd.AddCommand(cmd)
}

func runEdit(cmd *cobra.Command, args []string) {
	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := admin.EditContent(cmd.Context(), actorFlag, args[0], strings.Join(args[1:], " "))
	if err != nil {
		exitErr("edit", err)
	}

	b, _ := json.Marshal(m)
	fmt.Println(string(b))
}
