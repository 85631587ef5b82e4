package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events, newest first",
		Run:   runAudit,
	}

	cmd.Flags().StringP("subject", "s", "", "Filter by target subject id")
	cmd.Flags().IntP("limit", "l", 50, "Max events")

	RootCmd.AddCommand(cmd)
}

func runAudit(cmd *cobra.Command, args []string) {
	subject, _ := cmd.Flags().GetString("subject")
	limit, _ := cmd.Flags().GetInt("limit")

	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	events, err := admin.RecentAudit(cmd.Context(), store.FindAuditEvent{
		TargetSubjectID: subject,
		Limit:           limit,
	})
	if err != nil {
		exitErr("audit", err)
	}

	b, _ := json.MarshalIndent(events, "", "  ")
	fmt.Println(string(b))
}
