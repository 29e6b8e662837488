package retrieval

import (
	"sort"
	"strings"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

// MaxCandidates caps how many phones are handed to the prompt.
const MaxCandidates = 10

// EntrySource provides the catalog entries in dataset order.
type EntrySource interface {
	All() []catalog.Entry
}

// Filter narrows the catalog to the phones matching an intent.
type Filter struct {
	source EntrySource
}

// NewFilter creates a filter over the given catalog.
func NewFilter(src EntrySource) *Filter {
	return &Filter{source: src}
}

// Apply returns at most MaxCandidates entries. An empty result means nothing
// in the catalog satisfies the intent.
func (f *Filter) Apply(intent domain.Intent) []catalog.Entry {
	phones := f.source.All()

	if intent.Brand != "" {
		phones = keep(phones, func(e catalog.Entry) bool {
			return strings.Contains(strings.ToLower(e.Brand), intent.Brand)
		})
	}

	if intent.HasBudget() {
		phones = keep(phones, func(e catalog.Entry) bool {
			return e.Price <= intent.Budget
		})
	}

	// Display priority keeps dataset order.
	if key := sortKey(intent.Priority); key != nil {
		sort.SliceStable(phones, func(i, j int) bool {
			return key(phones[i]) > key(phones[j])
		})
	}

	if len(phones) > MaxCandidates {
		phones = phones[:MaxCandidates]
	}
	return phones
}

func sortKey(p domain.Priority) func(catalog.Entry) int {
	switch p {
	case domain.PriorityCamera:
		return func(e catalog.Entry) int { return e.Camera }
	case domain.PriorityBattery:
		return func(e catalog.Entry) int { return e.Battery }
	case domain.PriorityCharging:
		return func(e catalog.Entry) int { return e.FastCharging }
	}
	return nil
}

func keep(in []catalog.Entry, pred func(catalog.Entry) bool) []catalog.Entry {
	out := in[:0]
	for _, e := range in {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
