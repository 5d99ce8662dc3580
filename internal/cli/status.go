package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/governor/internal/core/config"
	"github.com/vietddude/governor/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show open incidents and recent governance actions",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	incidents, err := postgres.NewIncidentRepo(db).ListOpen(ctx)
	if err != nil {
		slog.Error("Failed to query incidents", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DEPENDENCY\tKIND\tSEVERITY\tDETECTED")
	for _, ev := range incidents {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.DependencyID, ev.Kind, ev.Severity, ev.DetectedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	entries, err := postgres.NewAuditRepo(db).List(ctx, 20)
	if err != nil {
		slog.Error("Failed to query audit log", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	aw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(aw, "ACTION\tCOMPONENT\tWHEN\tINTACT")
	for _, entry := range entries {
		_, _ = fmt.Fprintf(aw, "%s\t%s\t%s\t%t\n",
			entry.Action, entry.Component, entry.Timestamp.Format(time.RFC3339), entry.Verify())
	}
	_ = aw.Flush()
}
