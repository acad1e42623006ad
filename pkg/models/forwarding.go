package models

// MatchType selects how rule keywords are compared against text.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
)

// DestinationType selects where forwarded content goes.
type DestinationType string

const (
	DestinationChat  DestinationType = "chat"
	DestinationEmail DestinationType = "email"
	DestinationUser  DestinationType = "user"
	DestinationMulti DestinationType = "multi"
)

// Destination is a forwarding target. Multi destinations fan out to Destinations.
type Destination struct {
	Type         DestinationType `json:"type"                   validate:"required,oneof=chat email user multi"`
	Address      string          `json:"address,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Destinations []Destination   `json:"destinations,omitempty" validate:"dive"`
}

// Flatten expands multi destinations depth-first, dropping empty leaves.
func (d Destination) Flatten() []Destination {
	if d.Type != DestinationMulti {
		return []Destination{d}
	}

	var flat []Destination
	for _, nested := range d.Destinations {
		flat = append(flat, nested.Flatten()...)
	}

	return flat
}

// KeywordForwardingRule forwards content whose text matches at least MinMatches keywords.
// Priority breaks ties when several rules match; higher wins.
type KeywordForwardingRule struct {
	ID          string      `json:"id"          validate:"required"`
	Keywords    []string    `json:"keywords"    validate:"required,min=1"`
	MatchType   MatchType   `json:"match_type"  validate:"omitempty,oneof=exact fuzzy"`
	MinMatches  int         `json:"min_matches" validate:"gte=0"`
	Destination Destination `json:"destination"`
	Priority    int         `json:"priority"`
}
