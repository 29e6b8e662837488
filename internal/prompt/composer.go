// Package prompt builds the instruction block sent to the completion service.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

const notSpecified = "Not specified"

// PhoneSpecs is the display form of a catalog entry as shown to the model.
type PhoneSpecs struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Price        string `json:"price"`
	Camera       string `json:"camera"`
	Battery      string `json:"battery"`
	Display      string `json:"display"`
	OneHandUse   string `json:"oneHandUse"`
	FastCharging string `json:"fastCharging"`
}

var printer = message.NewPrinter(language.English)

// FormatPhone renders units and thousands separators, e.g. "₹15,999", "50MP".
func FormatPhone(e catalog.Entry) PhoneSpecs {
	oneHand := "No"
	if e.OneHandUse {
		oneHand = "Yes"
	}
	return PhoneSpecs{
		Brand:        e.Brand,
		Model:        e.Model,
		Price:        "₹" + printer.Sprintf("%d", e.Price),
		Camera:       fmt.Sprintf("%dMP", e.Camera),
		Battery:      fmt.Sprintf("%dmAh", e.Battery),
		Display:      strconv.FormatFloat(e.Display, 'f', -1, 64) + " inch",
		OneHandUse:   oneHand,
		FastCharging: fmt.Sprintf("%dW", e.FastCharging),
	}
}

// Composer assembles the prompt. It holds no state.
type Composer struct{}

// NewComposer creates a Composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose returns the full prompt. Only phones are serialized; nothing else
// from the catalog reaches the model.
func (c *Composer) Compose(userMessage string, intent domain.Intent, conv domain.Conversation, phones []catalog.Entry) string {
	var b strings.Builder

	b.WriteString("You are a phone database query system. Use ONLY the filtered phone data below.\n\n")

	b.WriteString("FILTERED PHONE DATA (Based on user query):\n")
	b.WriteString(phonesJSON(phones))
	b.WriteString("\n\n")

	b.WriteString("USER INTENT:\n")
	fmt.Fprintf(&b, "- Budget: %s\n", budgetLine(intent))
	fmt.Fprintf(&b, "- Brand: %s\n", orNotSpecified(intent.Brand))
	fmt.Fprintf(&b, "- Priority: %s\n", orNotSpecified(string(intent.Priority)))
	fmt.Fprintf(&b, "- Comparison: %s\n\n", yesNo(intent.Comparison))

	b.WriteString("CONVERSATION CONTEXT:\n")
	previous := "None"
	if len(conv.PreviousPhones) > 0 {
		previous = strings.Join(conv.PreviousPhones, ", ")
	}
	fmt.Fprintf(&b, "Previous phones discussed: %s\n\n", previous)

	for _, section := range []string{rulesSection, formattingSection, examplesSection, languageSection, reminderSection} {
		b.WriteString(section)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "USER QUERY: %q\n\n", userMessage)
	b.WriteString("Provide a helpful response using ONLY the filtered phone data. Explain your reasoning based on the available specifications.")

	return b.String()
}

func phonesJSON(phones []catalog.Entry) string {
	specs := make([]PhoneSpecs, 0, len(phones))
	for _, p := range phones {
		specs = append(specs, FormatPhone(p))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Flat string fields only; encoding cannot fail.
	_ = enc.Encode(specs)
	return strings.TrimRight(buf.String(), "\n")
}

func budgetLine(intent domain.Intent) string {
	if !intent.HasBudget() {
		return notSpecified
	}
	return fmt.Sprintf("Under ₹%d", intent.Budget)
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
