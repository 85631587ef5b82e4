// Package cli implements the sage CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/engine"
	"github.com/quietriver/sage/internal/store"
)

var (
	dbPath    string
	actorFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Coaching chat service with a conversational memory engine",
	Long:  "sage extracts durable facts from chat turns, keeps them deduplicated and bounded, and serves them back as context for coach replies. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SAGE_DSN or ~/.sage/sage.db)")
	RootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "cli", "Actor recorded in the audit log for mutating commands")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("SAGE_DSN"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sage", "sage.db")
}

func openStore() (*store.Store, error) {
	return store.New(getDBPath())
}

func openAdmin() (*engine.Admin, *store.Store, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return engine.NewAdmin(s), s, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
