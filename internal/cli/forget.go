package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [subject-id]",
		Short: "Delete all of a subject's memories",
		Long:  "Delete every SUBJECT-scoped memory for a subject. Pinned memories survive unless --include-pinned is set.",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	cmd.Flags().Bool("include-pinned", false, "Also delete pinned memories")

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	includePinned, _ := cmd.Flags().GetBool("include-pinned")

	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := admin.ForgetSubject(cmd.Context(), actorFlag, args[0], includePinned)
	if err != nil {
		exitErr("forget", err)
	}

	fmt.Printf(`{"ok":true,"subject":%q,"deleted":%d}`+"\n", args[0], n)
}
