package domain

import "time"

// DefaultConversationID is used when the caller does not supply one.
const DefaultConversationID = "default"

// Priority is the spec dimension a user cares about most.
type Priority string

const (
	PriorityNone     Priority = ""
	PriorityCamera   Priority = "camera"
	PriorityBattery  Priority = "battery"
	PriorityDisplay  Priority = "display"
	PriorityCharging Priority = "charging"
)

// Intent is the structured reading of a single user message.
type Intent struct {
	Budget     int      `json:"budget,omitempty"` // 0 means no ceiling
	Brand      string   `json:"brand,omitempty"`  // lowercase, partial match
	Priority   Priority `json:"priority,omitempty"`
	Comparison bool     `json:"comparison"`
	Features   []string `json:"features"`
}

// HasBudget reports whether the intent carries a price ceiling.
func (i Intent) HasBudget() bool {
	return i.Budget > 0
}

// Preferences accumulate across a conversation. Flags are never cleared.
type Preferences struct {
	MaxBudget       int  `json:"maxBudget,omitempty"`
	PriorityCamera  bool `json:"priorityCamera,omitempty"`
	PriorityBattery bool `json:"priorityBattery,omitempty"`
	PriorityDisplay bool `json:"priorityDisplay,omitempty"`
}

// Fold merges an intent into the preferences and returns the result.
// Charging priority has no preference flag.
func (p Preferences) Fold(intent Intent) Preferences {
	if intent.HasBudget() {
		p.MaxBudget = intent.Budget
	}
	switch intent.Priority {
	case PriorityCamera:
		p.PriorityCamera = true
	case PriorityBattery:
		p.PriorityBattery = true
	case PriorityDisplay:
		p.PriorityDisplay = true
	}
	return p
}

// Conversation is the per-conversation memory kept by the session store.
type Conversation struct {
	ID              string      `json:"conversationId"`
	PreviousPhones  []string    `json:"previousPhones"`
	LastQuery       string      `json:"lastQuery"`
	UserPreferences Preferences `json:"userPreferences"`
	UpdatedAt       time.Time   `json:"updatedAt,omitempty"`
}

// NewConversation returns an empty context for id.
func NewConversation(id string) Conversation {
	return Conversation{
		ID:             id,
		PreviousPhones: []string{},
	}
}

// Clone returns a deep copy so callers can mutate it safely.
func (c Conversation) Clone() Conversation {
	out := c
	out.PreviousPhones = append([]string{}, c.PreviousPhones...)
	return out
}

// Merge applies one exchange to the conversation: ordered set union of
// mentioned phones, last query, and folded preferences.
func (c Conversation) Merge(mentioned []string, rawMessage string, intent Intent) Conversation {
	out := c.Clone()
	seen := make(map[string]struct{}, len(out.PreviousPhones))
	for _, p := range out.PreviousPhones {
		seen[p] = struct{}{}
	}
	for _, p := range mentioned {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out.PreviousPhones = append(out.PreviousPhones, p)
	}
	out.LastQuery = rawMessage
	out.UserPreferences = out.UserPreferences.Fold(intent)
	return out
}
