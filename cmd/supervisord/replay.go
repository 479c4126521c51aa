package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/0mdb/robot-buddy-supervisor/internal/store"
)

// replayRow is one chronological entry in the replayed history: either
// a conversation session boundary or a param change, the only two
// kinds of history this supervisor persists.
type replayRow struct {
	atUnixMS int64
	kind     string
	detail   string
}

func newReplayCmd() *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print recent persisted sessions and param changes in time order",
		Long: `replay reconstructs a chronological view of what this supervisor
recorded: conversation session start/end events and runtime param
changes, interleaved by timestamp. It does not re-drive the tick loop,
since there is no recorded envelope log to replay frame-by-frame
against, only the sessions/param_audit history internal/store persists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(dbPath, limit)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db-path", "./robot-buddy.db", "sqlite database path")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows per source table")
	return cmd
}

func runReplay(dbPath string, limit int) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	sessions, err := st.RecentSessions(ctx, limit)
	if err != nil {
		return err
	}
	audit, err := st.RecentParamAudit(ctx, limit)
	if err != nil {
		return err
	}

	var rows []replayRow
	for _, s := range sessions {
		rows = append(rows, replayRow{atUnixMS: s.StartedAtUnixMS, kind: "session_start", detail: fmt.Sprintf("%s (trigger=%s)", s.SessionID, s.Trigger)})
		if s.EndedAtUnixMS.Valid {
			rows = append(rows, replayRow{atUnixMS: s.EndedAtUnixMS.Int64, kind: "session_end", detail: fmt.Sprintf("%s (turns=%d)", s.SessionID, s.TurnCount)})
		}
	}
	for _, a := range audit {
		rows = append(rows, replayRow{atUnixMS: a.ChangedAtUnixMS, kind: "param_change", detail: fmt.Sprintf("%s = %v", a.Name, a.Value)})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].atUnixMS < rows[j].atUnixMS })
	printReplayTable(rows)
	return nil
}

func printReplayTable(rows []replayRow) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"time", "kind", "detail"})
	table.SetAutoWrapText(false)
	for _, r := range rows {
		ts := time.UnixMilli(r.atUnixMS).Format(time.RFC3339)
		table.Append([]string{ts, r.kind, r.detail})
	}
	table.Render()
}
