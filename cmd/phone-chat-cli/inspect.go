package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/bootstrap"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/prompt"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/retrieval"
)

func newIntentCmd() *cobra.Command {
	var (
		budget int
		camera bool
	)

	cmd := &cobra.Command{
		Use:   "intent <message>",
		Short: "Show how a message is parsed and which phones it selects",
		Long: `intent runs the parser and the catalog filter without calling the
completion service. --budget and --camera simulate preferences remembered
from earlier turns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := bootstrap.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			conv := domain.NewConversation(domain.DefaultConversationID)
			conv.UserPreferences.MaxBudget = budget
			conv.UserPreferences.PriorityCamera = camera

			intent, phones := inspectIntent(idx, strings.Join(args, " "), conv)
			if outputJSON {
				specs := make([]prompt.PhoneSpecs, len(phones))
				for i, p := range phones {
					specs[i] = prompt.FormatPhone(p)
				}
				return writeJSON(ui.out, map[string]interface{}{"intent": intent, "phones": specs})
			}

			ui.Section("Intent")
			ui.Table([]string{"FIELD", "VALUE"}, [][]string{
				{"budget", orDash(intent.Budget)},
				{"brand", orDashString(intent.Brand)},
				{"priority", orDashString(string(intent.Priority))},
				{"comparison", fmt.Sprint(intent.Comparison)},
			})

			ui.Section(fmt.Sprintf("Candidates (%d)", len(phones)))
			if len(phones) == 0 {
				ui.Warning("no phones match")
				return nil
			}
			ui.Table(phoneHeaders, phoneRows(phones))
			return nil
		},
	}

	cmd.Flags().IntVar(&budget, "budget", 0, "remembered budget ceiling")
	cmd.Flags().BoolVar(&camera, "camera", false, "remembered camera priority")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var brand string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the phones the assistant may discuss",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := bootstrap.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			phones := brandEntries(idx, brand)

			if outputJSON {
				return writeJSON(ui.out, phones)
			}
			ui.Section(fmt.Sprintf("Catalog: %d phones, brands %s", len(phones), strings.Join(idx.Brands(), ", ")))
			ui.Table(phoneHeaders, phoneRows(phones))
			return nil
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "only list this brand (partial match)")
	return cmd
}

func inspectIntent(idx *catalog.Index, message string, conv domain.Conversation) (domain.Intent, []catalog.Entry) {
	intent := retrieval.NewParser(idx).Parse(strings.TrimSpace(message), conv)
	return intent, retrieval.NewFilter(idx).Apply(intent)
}

// brandEntries lists every entry whose brand contains brand, uncapped.
func brandEntries(idx *catalog.Index, brand string) []catalog.Entry {
	all := idx.All()
	if brand == "" {
		return all
	}
	brand = strings.ToLower(brand)
	out := all[:0]
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Brand), brand) {
			out = append(out, e)
		}
	}
	return out
}

var phoneHeaders = []string{"BRAND", "MODEL", "PRICE", "CAMERA", "BATTERY", "DISPLAY", "ONE-HAND", "CHARGING"}

func phoneRows(phones []catalog.Entry) [][]string {
	rows := make([][]string, 0, len(phones))
	for _, p := range phones {
		s := prompt.FormatPhone(p)
		rows = append(rows, []string{s.Brand, s.Model, s.Price, s.Camera, s.Battery, s.Display, s.OneHandUse, s.FastCharging})
	}
	return rows
}

func orDash(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func orDashString(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
