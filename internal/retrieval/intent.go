// Package retrieval turns a chat message into a structured intent and narrows
// the catalog to the phones that satisfy it.
package retrieval

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

// BrandSource lists the catalog brands in dataset order, lowercase.
type BrandSource interface {
	Brands() []string
}

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(k|thousand|inr|rs|₹)`),
	regexp.MustCompile(`(?i)under\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*below`),
}

// priorityTerms are checked in order; the first substring hit wins.
var priorityTerms = []domain.Priority{
	domain.PriorityCamera,
	domain.PriorityBattery,
	domain.PriorityDisplay,
	domain.PriorityCharging,
}

var comparisonTerms = []string{"compare", "versus", "vs", "difference"}

// Parser extracts budget, brand, priority and comparison from a message.
type Parser struct {
	brands []string
}

// NewParser creates a parser over the catalog's brand list.
func NewParser(src BrandSource) *Parser {
	return &Parser{brands: src.Brands()}
}

// Parse reads a message against the current conversation. It never mutates
// conv; budget and camera priority are inherited from its preferences when
// the message itself does not carry them.
func (p *Parser) Parse(message string, conv domain.Conversation) domain.Intent {
	lower := strings.ToLower(message)

	intent := domain.Intent{
		Budget:     parseBudget(message),
		Brand:      p.firstBrand(message),
		Priority:   parsePriority(lower),
		Comparison: containsAny(lower, comparisonTerms),
		Features:   []string{},
	}

	prefs := conv.UserPreferences
	if !intent.HasBudget() && prefs.MaxBudget > 0 {
		intent.Budget = prefs.MaxBudget
	}
	if intent.Priority == domain.PriorityNone && prefs.PriorityCamera {
		intent.Priority = domain.PriorityCamera
	}

	return intent
}

// Brands returns every catalog brand mentioned as a whole word, in dataset order.
func (p *Parser) Brands(message string) []string {
	padded := " " + strings.ToLower(message) + " "
	var found []string
	for _, b := range p.brands {
		if strings.Contains(padded, " "+b+" ") {
			found = append(found, b)
		}
	}
	return found
}

func (p *Parser) firstBrand(message string) string {
	if found := p.Brands(message); len(found) > 0 {
		return found[0]
	}
	return ""
}

// parseBudget returns 0 when no pattern matches or the number is zero.
// Amounts too large for an int saturate at math.MaxInt, which filters nothing.
func parseBudget(message string) int {
	for _, re := range budgetPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if errors.Is(err, strconv.ErrRange) {
			return math.MaxInt
		}
		if err != nil {
			return 0
		}
		if len(m) > 2 && strings.EqualFold(m[2], "k") {
			if n > math.MaxInt/1000 {
				return math.MaxInt
			}
			n *= 1000
		}
		return n
	}
	return 0
}

func parsePriority(lower string) domain.Priority {
	for _, p := range priorityTerms {
		if strings.Contains(lower, string(p)) {
			return p
		}
	}
	return domain.PriorityNone
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
