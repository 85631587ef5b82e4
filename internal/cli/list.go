package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List and search memories",
		Run:   runList,
	}

	cmd.Flags().String("scope", "", "Filter by scope: GLOBAL or SUBJECT")
	cmd.Flags().StringP("subject", "s", "", "Filter by subject id")
	cmd.Flags().StringP("query", "q", "", "Content substring")
	cmd.Flags().String("subject-search", "", "Subject id/name/email substring")
	cmd.Flags().String("pinned", "", "Filter by pinned: true or false")
	cmd.Flags().IntP("limit", "l", 50, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	subject, _ := cmd.Flags().GetString("subject")
	query, _ := cmd.Flags().GetString("query")
	subjectSearch, _ := cmd.Flags().GetString("subject-search")
	pinnedStr, _ := cmd.Flags().GetString("pinned")
	limit, _ := cmd.Flags().GetInt("limit")

	find := store.FindMemory{
		Scope:         model.Scope(scope),
		SubjectID:     subject,
		ContentSearch: query,
		SubjectSearch: subjectSearch,
		Limit:         limit,
	}
	if pinnedStr != "" {
		pinned, err := strconv.ParseBool(pinnedStr)
		if err != nil {
			exitErr("list", err)
		}
		find.Pinned = &pinned
	}

	admin, s, err := openAdmin()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := admin.Search(cmd.Context(), find)
	if err != nil {
		exitErr("list", err)
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
