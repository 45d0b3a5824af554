package model

import "fmt"

// League identifies a supported competition. The set is closed: the provider
// is only ever queried for leagues listed here, and the API boundary rejects
// anything else up front.
type League string

const (
	LeagueNFL   League = "NFL"
	LeagueNBA   League = "NBA"
	LeagueMLB   League = "MLB"
	LeagueNHL   League = "NHL"
	LeagueNCAAF League = "NCAAF"
	LeagueNCAAB League = "NCAAB"
)

// providerLeagueIDs maps our league names to the provider's leagueID values.
var providerLeagueIDs = map[League]string{
	LeagueNFL:   "NFL",
	LeagueNBA:   "NBA",
	LeagueMLB:   "MLB",
	LeagueNHL:   "NHL",
	LeagueNCAAF: "NCAAF",
	LeagueNCAAB: "NCAAB",
}

// ParseLeague validates a league name from config or an API path parameter.
func ParseLeague(s string) (League, error) {
	l := League(s)
	if _, ok := providerLeagueIDs[l]; !ok {
		return "", fmt.Errorf("unsupported league: %q", s)
	}
	return l, nil
}

// ProviderID returns the provider-side leagueID for this league.
func (l League) ProviderID() string {
	return providerLeagueIDs[l]
}

// SupportedLeagues lists every league the pipeline can sync.
func SupportedLeagues() []League {
	return []League{LeagueNFL, LeagueNBA, LeagueMLB, LeagueNHL, LeagueNCAAF, LeagueNCAAB}
}
