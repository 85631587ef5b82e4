package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	pinCmd := &cobra.Command{
		Use:   "pin [id]",
		Short: "Pin a memory, exempting it from eviction and bulk forget",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { runSetPinned(cmd, args[0], true) },
	}
	unpinCmd := &cobra.Command{
		Use:   "unpin [id]",
		Short: "Return a memory to normal retention rules",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { runSetPinned(cmd, args[0], false) },
	}

	RootCmd.AddCommand(pinCmd, unpinCmd)
}

func runSetPinned(cmd *cobra.Command, id string, pinned bool) {
	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var m any
	if pinned {
		m, err = admin.Pin(cmd.Context(), actorFlag, id)
	} else {
		m, err = admin.Unpin(cmd.Context(), actorFlag, id)
	}
	if err != nil {
		exitErr("pin", err)
	}

	b, _ := json.Marshal(m)
	fmt.Println(string(b))
}
