package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/store"
)

func init() {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and change the retention policy",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the current retention policy",
		Run:   runPolicyGet,
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change retention days or capacity ceilings",
		Run:   runPolicySet,
	}
	setCmd.Flags().Int("retention-days", 0, "Days a non-pinned memory survives without a refresh (7-365)")
	setCmd.Flags().Int("subject-ceiling", 0, "Max non-pinned memories per subject")
	setCmd.Flags().Int("global-ceiling", 0, "Max non-pinned global memories")

	policyCmd.AddCommand(getCmd, setCmd)
	RootCmd.AddCommand(policyCmd)
}

func runPolicyGet(cmd *cobra.Command, args []string) {
	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p, err := admin.GetPolicy(cmd.Context())
	if err != nil {
		exitErr("policy get", err)
	}

	b, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(b))
}

func runPolicySet(cmd *cobra.Command, args []string) {
	var patch store.UpdateRetentionPolicyParams
	if cmd.Flags().Changed("retention-days") {
		v, _ := cmd.Flags().GetInt("retention-days")
		patch.RetentionDays = &v
	}
	if cmd.Flags().Changed("subject-ceiling") {
		v, _ := cmd.Flags().GetInt("subject-ceiling")
		patch.SubjectCeiling = &v
	}
	if cmd.Flags().Changed("global-ceiling") {
		v, _ := cmd.Flags().GetInt("global-ceiling")
		patch.GlobalCeiling = &v
	}

	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p, err := admin.SetPolicy(cmd.Context(), actorFlag, patch)
	if err != nil {
		exitErr("policy set", err)
	}

	b, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(b))
}
