package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/chatwoot/ticketsync/internal/api"
)

var (
	ErrEmptyQuery = errors.New("empty technician query")
	ErrNoMatch    = errors.New("no technician matches")
)

// Match is a fuzzy match result with score.
type Match struct {
	ID    int
	Name  string
	Score int
}

// AmbiguousError indicates several technicians matched equally well.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous technician %q, candidates:", e.Query)
	for _, m := range e.Matches {
		_, _ = fmt.Fprintf(&b, "\n  %d: %s", m.ID, m.Name)
	}
	return b.String()
}

type nameSource []api.Technician

func (s nameSource) String(i int) string { return strings.ToLower(s[i].Name) }
func (s nameSource) Len() int            { return len(s) }

// match picks one technician by name. An exact case-insensitive name or
// email wins; otherwise the best fuzzy score wins, and a tie is ambiguous.
func match(query string, techs []api.Technician) (api.Technician, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return api.Technician{}, ErrEmptyQuery
	}
	for _, t := range techs {
		if strings.EqualFold(t.Name, query) || (t.Email != "" && strings.EqualFold(t.Email, query)) {
			return t, nil
		}
	}
	results := fuzzy.FindFrom(strings.ToLower(query), nameSource(techs))
	if len(results) == 0 {
		return api.Technician{}, fmt.Errorf("%w %q", ErrNoMatch, query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return api.Technician{}, &AmbiguousError{Query: query, Matches: topMatches(techs, results, 5)}
	}
	return techs[results[0].Index], nil
}

func topMatches(techs []api.Technician, results fuzzy.Matches, limit int) []Match {
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = Match{ID: techs[r.Index].ID, Name: techs[r.Index].Name, Score: r.Score}
	}
	return out
}
