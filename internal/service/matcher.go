package service

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"

	"movie-discovery-recommender/internal/models"
)

// catalogProvider supplies the candidate movies for one match.
type catalogProvider interface {
	Movies(ctx context.Context) ([]models.Movie, error)
}

// Matcher filters catalog candidates against criteria and ranks the survivors.
// It holds no mutable state and may be shared across goroutines.
type Matcher struct {
	vocab models.Vocabulary
}

// NewMatcher creates a Matcher that interprets criteria with vocab.
func NewMatcher(vocab models.Vocabulary) *Matcher {
	return &Matcher{vocab: vocab}
}

// Match reads the catalog once and ranks it against c. A catalog failure is
// reported as *models.MatchError; no survivors is an empty, non-nil slice.
func (m *Matcher) Match(ctx context.Context, c models.PreferenceCriteria, catalog catalogProvider) ([]models.Movie, error) {
	movies, err := catalog.Movies(ctx)
	if err != nil {
		return nil, &models.MatchError{Err: err}
	}
	return m.Rank(c, movies), nil
}

type candidate struct {
	movie   models.Movie
	overlap int
}

// Rank applies the hard filters and returns at most c.RequestedCount movies,
// ordered by genre overlap, then rating, then id.
func (m *Matcher) Rank(c models.PreferenceCriteria, movies []models.Movie) []models.Movie {
	f := m.compile(c)

	survivors := make([]candidate, 0, len(movies))
	for _, mv := range movies {
		overlap, ok := f.admit(mv)
		if !ok {
			continue
		}
		survivors = append(survivors, candidate{movie: mv, overlap: overlap})
	}

	slices.SortStableFunc(survivors, compareCandidates)

	n := max(0, min(c.RequestedCount, len(survivors)))
	out := make([]models.Movie, 0, n)
	for _, s := range survivors[:n] {
		out = append(out, s.movie)
	}
	return models.CloneMovies(out)
}

func compareCandidates(a, b candidate) int {
	if a.overlap != b.overlap {
		return cmp.Compare(b.overlap, a.overlap)
	}
	if a.movie.Rating != b.movie.Rating {
		return cmp.Compare(b.movie.Rating, a.movie.Rating)
	}
	return cmp.Compare(a.movie.ID, b.movie.ID)
}

// filter is criteria resolved against the vocabulary once per match.
// Nil pointers mean ANY.
type filter struct {
	language   *models.Option
	country    *models.Option
	popularity *models.Option
	era        *models.Era
	freeTime   models.FreeTime
	genres     []models.Option
}

func (m *Matcher) compile(c models.PreferenceCriteria) filter {
	f := filter{
		language:   resolve(c.Language, m.vocab.Language),
		country:    resolve(c.Country, m.vocab.Country),
		popularity: resolve(c.Popularity, m.vocab.Popularity),
	}

	if !isAny(c.Era) {
		era, ok := m.vocab.Era(c.Era)
		if !ok {
			// Unknown era names match nothing rather than everything.
			era = models.Era{Value: c.Era, FromYear: math.MaxInt}
		}
		f.era = &era
	}

	ft, ok := m.vocab.FreeTime(strconv.Itoa(c.FreeTimeMinutes))
	if !ok {
		ft = models.FreeTime{Minutes: c.FreeTimeMinutes}
	}
	f.freeTime = ft

	for _, g := range c.Genres {
		opt, ok := m.vocab.Genre(g)
		if !ok {
			opt = models.Option{Value: g}
		}
		f.genres = append(f.genres, opt)
	}
	return f
}

func (f filter) admit(mv models.Movie) (int, bool) {
	if f.language != nil && !f.language.Matches(mv.Language) {
		return 0, false
	}
	if f.country != nil && !f.country.Matches(mv.Country) {
		return 0, false
	}
	if f.popularity != nil && !f.popularity.Matches(mv.Popularity) {
		return 0, false
	}
	if f.era != nil && !f.era.Contains(mv.Year) {
		return 0, false
	}
	if !f.freeTime.Allows(mv.Duration) {
		return 0, false
	}

	overlap := 0
	for _, g := range f.genres {
		if slices.ContainsFunc(mv.Genres, g.Matches) {
			overlap++
		}
	}
	if overlap == 0 {
		return 0, false
	}
	return overlap, true
}

func resolve(value string, lookup func(string) (models.Option, bool)) *models.Option {
	if isAny(value) {
		return nil
	}
	opt, ok := lookup(value)
	if !ok {
		opt = models.Option{Value: value}
	}
	return &opt
}

func isAny(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, models.Any)
}
