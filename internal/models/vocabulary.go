package models

import (
	"strconv"
	"strings"
)

// Option is one member of a closed vocabulary. Aliases are extra spellings
// accepted when comparing against catalog records.
type Option struct {
	Value   string   `json:"value"`
	Label   string   `json:"label"`
	Aliases []string `json:"-"`
}

// Matches reports whether s names this option, ignoring case.
func (o Option) Matches(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.EqualFold(s, o.Value) || strings.EqualFold(s, o.Label) {
		return true
	}
	for _, a := range o.Aliases {
		if strings.EqualFold(s, a) {
			return true
		}
	}
	return false
}

// Era is a release-year range. Zero bounds are open.
type Era struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	FromYear int    `json:"from_year,omitempty"`
	ToYear   int    `json:"to_year,omitempty"`
}

// Contains reports whether year falls inside the era. Unknown years never match.
func (e Era) Contains(year int) bool {
	if year <= 0 {
		return false
	}
	if e.FromYear > 0 && year < e.FromYear {
		return false
	}
	if e.ToYear > 0 && year > e.ToYear {
		return false
	}
	return true
}

// FreeTime is a viewing-time bucket. The open-ended bucket ("180+") has no cap.
type FreeTime struct {
	Minutes   int    `json:"minutes"`
	Label     string `json:"label"`
	OpenEnded bool   `json:"open_ended"`
}

// Allows reports whether a film of the given duration fits the budget.
func (f FreeTime) Allows(duration int) bool {
	return f.OpenEnded || duration <= f.Minutes
}

// Vocabulary holds every closed value set used by the preference form.
type Vocabulary struct {
	Moods        []string   `json:"moods"`
	FreeTimes    []FreeTime `json:"free_times"`
	Languages    []Option   `json:"languages"`
	Countries    []Option   `json:"countries"`
	Eras         []Era      `json:"eras"`
	Popularities []Option   `json:"popularities"`
	Genres       []Option   `json:"genres"`
}

// DefaultVocabulary mirrors the options offered by the web client.
var DefaultVocabulary = Vocabulary{
	Moods: []string{
		"Happy", "Sad", "Excited", "Relaxed", "Adventurous",
		"Romantic", "Scared", "Thoughtful", "Energetic", "Melancholic",
	},
	FreeTimes: []FreeTime{
		{Minutes: 60, Label: "60 minutes"},
		{Minutes: 90, Label: "90 minutes"},
		{Minutes: 120, Label: "120 minutes"},
		{Minutes: 150, Label: "150 minutes"},
		{Minutes: 180, Label: "180+ minutes", OpenEnded: true},
	},
	Languages: []Option{
		{Value: "en", Label: "English"},
		{Value: "es", Label: "Spanish"},
		{Value: "fr", Label: "French"},
		{Value: "de", Label: "German"},
		{Value: "ja", Label: "Japanese"},
		{Value: "ko", Label: "Korean"},
	},
	Countries: []Option{
		{Value: "us", Label: "United States", Aliases: []string{"USA", "United States of America"}},
		{Value: "uk", Label: "United Kingdom", Aliases: []string{"GB", "Great Britain", "England"}},
		{Value: "fr", Label: "France"},
		{Value: "jp", Label: "Japan"},
		{Value: "kr", Label: "South Korea", Aliases: []string{"Korea"}},
		{Value: "in", Label: "India"},
	},
	Eras: []Era{
		{Value: "2020s", Label: "2020s", FromYear: 2020, ToYear: 2029},
		{Value: "2010s", Label: "2010s", FromYear: 2010, ToYear: 2019},
		{Value: "2000s", Label: "2000s", FromYear: 2000, ToYear: 2009},
		{Value: "1990s", Label: "1990s", FromYear: 1990, ToYear: 1999},
		{Value: "1980s", Label: "1980s", FromYear: 1980, ToYear: 1989},
		{Value: "classic", Label: "Classic (before 1980)", ToYear: 1979},
	},
	Popularities: []Option{
		{Value: "mainstream", Label: "Mainstream Hits"},
		{Value: "hidden", Label: "Hidden Gems"},
		{Value: "cult", Label: "Cult Classics"},
	},
	Genres: []Option{
		{Value: "Action", Label: "Action"},
		{Value: "Adventure", Label: "Adventure"},
		{Value: "Animation", Label: "Animation"},
		{Value: "Comedy", Label: "Comedy"},
		{Value: "Crime", Label: "Crime"},
		{Value: "Drama", Label: "Drama"},
		{Value: "Fantasy", Label: "Fantasy"},
		{Value: "Horror", Label: "Horror"},
		{Value: "Mystery", Label: "Mystery"},
		{Value: "Romance", Label: "Romance"},
		{Value: "Sci-Fi", Label: "Sci-Fi", Aliases: []string{"Science Fiction", "SciFi"}},
		{Value: "Thriller", Label: "Thriller"},
		{Value: "Western", Label: "Western"},
	},
}

func findOption(opts []Option, token string) (Option, bool) {
	for _, o := range opts {
		if o.Matches(token) {
			return o, true
		}
	}
	return Option{}, false
}

// Mood returns the canonical spelling of a vocabulary mood.
func (v Vocabulary) Mood(token string) (string, bool) {
	token = strings.TrimSpace(token)
	for _, m := range v.Moods {
		if strings.EqualFold(m, token) {
			return m, true
		}
	}
	return "", false
}

// FreeTime resolves tokens such as "90", "180+" or "120 min".
func (v Vocabulary) FreeTime(token string) (FreeTime, bool) {
	token = strings.TrimSpace(strings.ToLower(token))
	token = strings.TrimSuffix(token, "minutes")
	token = strings.TrimSuffix(token, "min")
	token = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(token), "+"))
	minutes, err := strconv.Atoi(token)
	if err != nil {
		return FreeTime{}, false
	}
	for _, f := range v.FreeTimes {
		if f.Minutes == minutes {
			return f, true
		}
	}
	return FreeTime{}, false
}

func (v Vocabulary) Language(token string) (Option, bool)   { return findOption(v.Languages, token) }
func (v Vocabulary) Country(token string) (Option, bool)    { return findOption(v.Countries, token) }
func (v Vocabulary) Popularity(token string) (Option, bool) { return findOption(v.Popularities, token) }
func (v Vocabulary) Genre(token string) (Option, bool)      { return findOption(v.Genres, token) }

// Era resolves an era token such as "1990s" or "classic".
func (v Vocabulary) Era(token string) (Era, bool) {
	token = strings.TrimSpace(token)
	for _, e := range v.Eras {
		if strings.EqualFold(e.Value, token) || strings.EqualFold(e.Label, token) {
			return e, true
		}
	}
	return Era{}, false
}
