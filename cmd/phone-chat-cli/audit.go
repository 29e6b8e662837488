package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/storage"
)

func newAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the exchange audit log",
		Long: `audit reads the database configured under audit (or DATABASE_URL). The
log is written by the API and CLI when audit.enabled is true.`,
	}
	cmd.PersistentFlags().IntVar(&limit, "limit", 20, "maximum rows to show")

	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openAudit(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			rows, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderExchanges(rows)
		},
	}

	conversation := &cobra.Command{
		Use:   "conversation <id>",
		Short: "Show one conversation's exchanges, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openAudit(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			rows, err := repo.ListByConversation(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return renderExchanges(rows)
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count exchanges by outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openAudit(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			counts, err := repo.CountByOutcome(cmd.Context())
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(ui.out, counts)
			}

			outcomes := make([]string, 0, len(counts))
			for o := range counts {
				outcomes = append(outcomes, o)
			}
			sort.Strings(outcomes)
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{o, fmt.Sprint(counts[o])})
			}
			ui.Table([]string{"OUTCOME", "COUNT"}, rows)
			return nil
		},
	}

	cmd.AddCommand(recent, conversation, stats)
	return cmd
}

func openAudit(cmd *cobra.Command) (*storage.ExchangeRepository, func(), error) {
	db, err := storage.Open(cmd.Context(), cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return storage.NewExchangeRepository(db), func() { _ = db.Close() }, nil
}

func renderExchanges(rows []*storage.Exchange) error {
	if outputJSON {
		return writeJSON(ui.out, rows)
	}
	if len(rows) == 0 {
		ui.Warning("no exchanges recorded")
		return nil
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.ConversationID,
			truncate(r.Message, 40),
			r.Outcome,
			fmt.Sprint(r.StatusCode),
			fmt.Sprint(r.PhonesFound),
			fmt.Sprintf("%dms", r.LatencyMs),
		})
	}
	ui.Table([]string{"TIME", "CONVERSATION", "MESSAGE", "OUTCOME", "STATUS", "PHONES", "LATENCY"}, table)
	return nil
}
