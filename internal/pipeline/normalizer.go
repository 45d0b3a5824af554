package pipeline

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"OddsSync/internal/model"

	"github.com/sirupsen/logrus"
)

// betTypeMap is the closed mapping from provider bet-type codes to canonical
// categories. Substring matching against market names is exactly what caused
// misclassified props upstream, so anything not listed here is unknown and
// gets dropped as unsupported.
var betTypeMap = map[string]model.BetType{
	"ml":     model.BetTypeMoneyline,
	"ml3way": model.BetTypeMoneyline,
	"sp":     model.BetTypeSpread,
	"ou":     model.BetTypeTotal,
	"yn":     model.BetTypePlayerProp,
	"eo":     model.BetTypePlayerProp,
}

// MapBetType resolves a provider bet-type code to a canonical category.
func MapBetType(betTypeID string) model.BetType {
	if bt, ok := betTypeMap[strings.ToLower(strings.TrimSpace(betTypeID))]; ok {
		return bt
	}
	return model.BetTypeUnknown
}

// CoerceLine maps a raw line value to its canonical form. The provider emits
// lines as numbers, numeric strings, the literal "null", the empty string, or
// omits them entirely; every non-numeric form collapses to nil.
func CoerceLine(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "undefined") {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// CoerceOdds parses an American-odds price that may arrive as a number or a
// string with an optional leading "+". Returns false when no usable price is
// present.
func CoerceOdds(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "+"))
		if s == "" || strings.EqualFold(s, "null") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// AltOddID derives the identity for an alternate line. The suffix hashes the
// alt's own line value, side, bookmaker and positional index together; the
// raw line value alone is not enough, since the provider can emit several
// alternates at the same number (and in mixed string/number form) under one
// main line.
func AltOddID(baseOddID, lineKey, side, sportsbook string, altIndex int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", lineKey, side, sportsbook, altIndex)
	return fmt.Sprintf("%s_alt_%016x", baseOddID, h.Sum64())
}

// NormalizeResult is the flattened output for one event payload.
type NormalizeResult struct {
	Records     []*model.Odds
	Invalid     int      // entries dropped for missing key or unusable price
	Unsupported int      // entries dropped for unrecognized bet-type code
	Dropped     []string // keys of dropped entries, wherever the provider gave one
}

// Normalizer flattens raw event payloads into canonical odds records.
// Pure transform: no I/O, no shared state.
type Normalizer struct {
	logger *logrus.Logger
}

func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeEvent emits one record per (main line x bookmaker) and one per
// (alternate line x bookmaker). Iteration is key-sorted for main lines so
// output is deterministic; alternate indices follow provider array order,
// which is what makes the positional disambiguator stable.
func (n *Normalizer) NormalizeEvent(ev *model.EventPayload) *NormalizeResult {
	res := &NormalizeResult{}
	if ev == nil || ev.EventID == "" {
		return res
	}

	oddKeys := make([]string, 0, len(ev.Odds))
	for k := range ev.Odds {
		oddKeys = append(oddKeys, k)
	}
	sort.Strings(oddKeys)

	for _, oddKey := range oddKeys {
		raw := ev.Odds[oddKey]

		key := oddKey
		if key == "" {
			key = raw.OddID
		}
		if key == "" {
			res.Invalid++
			n.logger.WithField("event_id", ev.EventID).Warn("odd entry missing provider key, dropped")
			continue
		}

		betType := MapBetType(raw.BetTypeID)
		if betType == model.BetTypeUnknown {
			res.Unsupported++
			res.Dropped = append(res.Dropped, key)
			n.logger.WithFields(logrus.Fields{
				"event_id":    ev.EventID,
				"odd_key":     key,
				"bet_type_id": raw.BetTypeID,
			}).Warn("unrecognized bet type, dropped")
			continue
		}

		side := sideFor(raw, key)

		books := make([]string, 0, len(raw.ByBookmaker))
		for b := range raw.ByBookmaker {
			books = append(books, b)
		}
		sort.Strings(books)

		for _, book := range books {
			bm := raw.ByBookmaker[book]

			if price, ok := CoerceOdds(bm.Odds); ok {
				line := lineFor(betType, bm.Spread, bm.OverUnder)
				res.Records = append(res.Records, n.record(ev, raw, key, betType, side, book, line, price))
			} else {
				res.Invalid++
				res.Dropped = append(res.Dropped, fmt.Sprintf("%s|%s", key, book))
				n.logger.WithFields(logrus.Fields{
					"event_id": ev.EventID,
					"odd_key":  key,
					"book":     book,
				}).Warn("unusable price, dropped")
			}

			for i, alt := range bm.AltLines {
				price, ok := CoerceOdds(alt.Odds)
				if !ok {
					res.Invalid++
					res.Dropped = append(res.Dropped, fmt.Sprintf("%s|%s|alt%d", key, book, i))
					continue
				}
				line := lineFor(betType, alt.Spread, alt.OverUnder)
				rec := n.record(ev, raw, key, betType, side, book, line, price)
				rec.OddID = AltOddID(key, rec.LineKey, side, book, i)
				res.Records = append(res.Records, rec)
			}
		}
	}

	return res
}

func (n *Normalizer) record(ev *model.EventPayload, raw model.RawOdd, oddID string, betType model.BetType, side, book string, line *float64, price int) *model.Odds {
	return &model.Odds{
		EventID:    ev.EventID,
		OddID:      oddID,
		LineKey:    model.LineKeyFor(line),
		Side:       side,
		Sportsbook: book,
		League:     ev.LeagueID,
		MarketName: raw.MarketName,
		BetType:    betType,
		Line:       line,
		BookOdds:   price,
	}
}

// lineFor picks the applicable line field for the bet type. Moneylines have
// no line by definition; spreads read the spread field, everything else the
// over/under.
func lineFor(betType model.BetType, spread, overUnder any) *float64 {
	switch betType {
	case model.BetTypeMoneyline:
		return nil
	case model.BetTypeSpread:
		return CoerceLine(spread)
	default:
		if l := CoerceLine(overUnder); l != nil {
			return l
		}
		return CoerceLine(spread)
	}
}

// sideFor prefers the provider's explicit sideID and falls back to the last
// segment of the odd key (e.g. "points-all-game-ou-over" -> "over").
func sideFor(raw model.RawOdd, oddKey string) string {
	if raw.SideID != "" {
		return raw.SideID
	}
	parts := strings.Split(oddKey, "-")
	return parts[len(parts)-1]
}
