package model

import (
	"fmt"
	"strconv"
	"time"
)

// BetType is the closed set of proposition categories the pipeline accepts.
// Provider market codes map onto these via pipeline.MapBetType; anything
// outside the set is BetTypeUnknown and is dropped, never guessed at.
type BetType string

const (
	BetTypeMoneyline  BetType = "moneyline"
	BetTypeSpread     BetType = "spread"
	BetTypeTotal      BetType = "total"
	BetTypePlayerProp BetType = "player_prop"
	BetTypeUnknown    BetType = "unknown"
)

// Odds is one bookmaker price for one proposition, the current snapshot.
// Rows are addressed by the identity tuple
// (event_id, odd_id, line_key, side, sportsbook) and overwritten on every
// re-observation.
//
// line_key is the canonical text form of Line ("-" when absent) so the
// composite unique index never contains a NULL; Postgres treats NULLs as
// distinct inside unique indexes, which would let "no line" rows duplicate.
type Odds struct {
	ID         uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	EventID    string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:uk_odds_identity,priority:1;index"`
	OddID      string    `gorm:"column:odd_id;type:varchar(128);not null;uniqueIndex:uk_odds_identity,priority:2"`
	LineKey    string    `gorm:"column:line_key;type:varchar(32);not null;uniqueIndex:uk_odds_identity,priority:3"`
	Side       string    `gorm:"column:side;type:varchar(32);not null;uniqueIndex:uk_odds_identity,priority:4"`
	Sportsbook string    `gorm:"column:sportsbook;type:varchar(64);not null;uniqueIndex:uk_odds_identity,priority:5"`
	League     string    `gorm:"column:league;type:varchar(16);index"`
	MarketName string    `gorm:"column:market_name;type:varchar(128)"`
	BetType    BetType   `gorm:"column:bet_type;type:varchar(32);not null"`
	Line       *float64  `gorm:"column:line;type:decimal(10,2)"`
	BookOdds   int       `gorm:"column:book_odds;not null"`
	FetchedAt  time.Time `gorm:"column:fetched_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Odds) TableName() string {
	return "odds"
}

// IdentityKey renders the uniqueness tuple as a single string, used for
// in-memory dedup and for reporting dropped/collided records.
func (o *Odds) IdentityKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", o.EventID, o.OddID, o.LineKey, o.Side, o.Sportsbook)
}

// OpenOdds is the opening-line snapshot: the first-observed row for an
// identity key, frozen on first write. Same shape as Odds, write-once policy.
type OpenOdds struct {
	ID         uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	EventID    string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:uk_open_odds_identity,priority:1;index"`
	OddID      string    `gorm:"column:odd_id;type:varchar(128);not null;uniqueIndex:uk_open_odds_identity,priority:2"`
	LineKey    string    `gorm:"column:line_key;type:varchar(32);not null;uniqueIndex:uk_open_odds_identity,priority:3"`
	Side       string    `gorm:"column:side;type:varchar(32);not null;uniqueIndex:uk_open_odds_identity,priority:4"`
	Sportsbook string    `gorm:"column:sportsbook;type:varchar(64);not null;uniqueIndex:uk_open_odds_identity,priority:5"`
	League     string    `gorm:"column:league;type:varchar(16);index"`
	MarketName string    `gorm:"column:market_name;type:varchar(128)"`
	BetType    BetType   `gorm:"column:bet_type;type:varchar(32);not null"`
	Line       *float64  `gorm:"column:line;type:decimal(10,2)"`
	BookOdds   int       `gorm:"column:book_odds;not null"`
	FetchedAt  time.Time `gorm:"column:fetched_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OpenOdds) TableName() string {
	return "open_odds"
}

func (o *OpenOdds) IdentityKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", o.EventID, o.OddID, o.LineKey, o.Side, o.Sportsbook)
}

// NewOpenOdds copies a current-odds record into its opening-line shape.
func NewOpenOdds(o *Odds) *OpenOdds {
	return &OpenOdds{
		EventID:    o.EventID,
		OddID:      o.OddID,
		LineKey:    o.LineKey,
		Side:       o.Side,
		Sportsbook: o.Sportsbook,
		League:     o.League,
		MarketName: o.MarketName,
		BetType:    o.BetType,
		Line:       o.Line,
		BookOdds:   o.BookOdds,
		FetchedAt:  o.FetchedAt,
	}
}

// LineKeyFor renders a line value into its canonical index form.
// Absent lines become "-" so the key is never empty and never NULL.
func LineKeyFor(line *float64) string {
	if line == nil {
		return "-"
	}
	return strconv.FormatFloat(*line, 'f', -1, 64)
}
