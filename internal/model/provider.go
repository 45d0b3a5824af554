package model

// Raw payload shapes for the odds provider's /events endpoint. Kept as close
// to the wire as possible; all cleaning happens in the pipeline.
//
// Line and price fields are deliberately `any`: the provider emits them
// inconsistently as numbers, numeric strings, the literal string "null", or
// the empty string. Coercion to canonical values is the Normalizer's job.

// EventsResponse is one page of the provider's paginated /events endpoint.
type EventsResponse struct {
	Success    bool           `json:"success"`
	Data       []EventPayload `json:"data"`
	NextCursor string         `json:"nextCursor"`
}

// EventPayload is one sporting event with its nested odds.
type EventPayload struct {
	EventID  string            `json:"eventID"`
	LeagueID string            `json:"leagueID"`
	SportID  string            `json:"sportID"`
	Status   EventStatus       `json:"status"`
	Teams    EventTeams        `json:"teams"`
	Odds     map[string]RawOdd `json:"odds"` // keyed by provider odd key, e.g. "points-all-game-ou-over"
}

// EventStatus carries scheduling state for the event.
type EventStatus struct {
	StartsAt  string `json:"startsAt"`
	Started   bool   `json:"started"`
	Completed bool   `json:"completed"`
}

// EventTeams names the participants.
type EventTeams struct {
	Home TeamRef `json:"home"`
	Away TeamRef `json:"away"`
}

// TeamRef is a minimal team reference.
type TeamRef struct {
	TeamID string    `json:"teamID"`
	Names  TeamNames `json:"names"`
}

// TeamNames holds the provider's name variants.
type TeamNames struct {
	Long  string `json:"long"`
	Short string `json:"short"`
}

// RawOdd is one main line: a proposition with per-bookmaker prices.
type RawOdd struct {
	OddID       string                `json:"oddID"`
	MarketName  string                `json:"marketName"`
	StatID      string                `json:"statID"`
	BetTypeID   string                `json:"betTypeID"`
	SideID      string                `json:"sideID"`
	ByBookmaker map[string]RawBookOdd `json:"byBookmaker"` // keyed by bookmaker name
}

// RawBookOdd is one bookmaker's price for a main line, optionally with
// alternate lines at other spread/total values.
type RawBookOdd struct {
	Odds      any          `json:"odds"`      // American odds; number or string
	OverUnder any          `json:"overUnder"` // total line; may be "null"/""
	Spread    any          `json:"spread"`    // spread line; may be "null"/""
	Available bool         `json:"available"`
	AltLines  []RawAltLine `json:"altLines"`
}

// RawAltLine is one alternate price point under a bookmaker.
type RawAltLine struct {
	Odds      any `json:"odds"`
	OverUnder any `json:"overUnder"`
	Spread    any `json:"spread"`
}
