package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quietriver/sage/internal/ai"
	"github.com/quietriver/sage/internal/chat"
	"github.com/quietriver/sage/internal/engine"
	"github.com/quietriver/sage/internal/profile"
	"github.com/quietriver/sage/internal/server"
	"github.com/quietriver/sage/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sage HTTP server",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Binding address (default: $SAGE_ADDR or 127.0.0.1)")
	cmd.Flags().Int("port", 0, "Binding port (default: $SAGE_PORT or 8484)")
	cmd.Flags().String("mode", "", "Mode: dev or prod (default: $SAGE_MODE or dev)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	p := &profile.Profile{}
	p.Addr, _ = cmd.Flags().GetString("addr")
	p.Port, _ = cmd.Flags().GetInt("port")
	p.Mode, _ = cmd.Flags().GetString("mode")
	p.FromEnv()
	if dbPath != "" {
		p.DSN = dbPath
		p.Data = filepath.Dir(dbPath)
	}
	if err := p.Validate(); err != nil {
		exitErr("profile", err)
	}

	s, err := store.New(p.DSN)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if p.AIAPIKey == "" {
		slog.Warn("SAGE_OPENROUTER_API_KEY is not set; chat replies will fail")
	}
	provider := ai.NewProvider(&ai.Config{
		BaseURL: p.AIBaseURL,
		APIKey:  p.AIAPIKey,
		Model:   p.AIModel,
	})

	eng := engine.New(s)
	admin := engine.NewAdmin(s)
	pipeline := chat.NewPipeline(s, eng, provider)
	srv := server.New(p, s, eng, admin, pipeline)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		exitErr("serve", err)
	}
}
