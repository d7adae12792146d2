package models

import "slices"

// MoodMode selects which of the two mood inputs is authoritative.
type MoodMode string

const (
	MoodChosen    MoodMode = "CHOSEN"
	MoodDescribed MoodMode = "DESCRIBED"
)

// Any is the sentinel for "no constraint" on enumerated fields.
const Any = "any"

// Raw form field names. Field errors are keyed by these.
const (
	FieldMoodMode     = "moodMode"
	FieldSelectedMood = "selectedMood"
	FieldCustomMood   = "customMood"
	FieldFreeTime     = "freeTime"
	FieldLanguage     = "language"
	FieldCountry      = "country"
	FieldEra          = "era"
	FieldPopularity   = "popularity"
	FieldGenres       = "genres"
	FieldMovieCount   = "movieCount"

	// FieldMoodOption is the older client's name for moodMode. It is read
	// only when moodMode is absent.
	FieldMoodOption = "moodOption"
)

// RawPreferences is the form payload exactly as a client submitted it.
// Values are strings, numbers or string arrays with no guarantees.
type RawPreferences map[string]any

// PreferenceCriteria is the validated, canonical form of a submission.
type PreferenceCriteria struct {
	MoodMode        MoodMode `json:"mood_mode"`
	Mood            string   `json:"mood"`
	FreeTimeMinutes int      `json:"free_time_minutes"`
	Language        string   `json:"language"`
	Country         string   `json:"country"`
	Era             string   `json:"era"`
	Popularity      string   `json:"popularity"`
	Genres          []string `json:"genres"`
	RequestedCount  int      `json:"requested_count"`
}

// Clone returns a copy that shares no slices with c.
func (c PreferenceCriteria) Clone() PreferenceCriteria {
	c.Genres = slices.Clone(c.Genres)
	return c
}
