package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"movie-discovery-recommender/internal/models"
	"movie-discovery-recommender/internal/validation"
)

const (
	msgSelectMood    = "Select a mood or switch to describe it yourself."
	msgDescribeMood  = "Describe your mood or switch to choose from options."
	msgUnknownMood   = "Select a mood from the list."
	msgMoodMode      = "Choose whether to pick a mood or describe it."
	msgFreeTime      = "Select how much free time you have."
	msgSelectGenre   = "Select at least one genre."
	msgMovieCountNaN = "Enter a whole number of movies."
	msgMinMovies     = "At least 1 movie."
)

// PreferenceValidator turns raw form input into PreferenceCriteria.
// It has no state beyond its vocabulary and is safe for concurrent use.
type PreferenceValidator struct {
	vocab    models.Vocabulary
	maxCount int
}

// NewPreferenceValidator creates a validator accepting up to maxCount movies.
func NewPreferenceValidator(vocab models.Vocabulary, maxCount int) *PreferenceValidator {
	return &PreferenceValidator{vocab: vocab, maxCount: maxCount}
}

// MaxCount returns the largest accepted movieCount.
func (v *PreferenceValidator) MaxCount() int { return v.maxCount }

// Validate normalizes raw and returns canonical criteria, or a
// *models.ValidationError holding one message per offending field.
func (v *PreferenceValidator) Validate(raw models.RawPreferences) (models.PreferenceCriteria, error) {
	errs := models.FieldErrors{}
	var c models.PreferenceCriteria

	v.validateMood(raw, &c, errs)

	if ft, ok := v.vocab.FreeTime(rawString(raw, models.FieldFreeTime)); ok {
		c.FreeTimeMinutes = ft.Minutes
	} else {
		errs.Add(models.FieldFreeTime, msgFreeTime)
	}

	c.Language = enumField(raw, models.FieldLanguage, errs, func(s string) (string, bool) {
		o, ok := v.vocab.Language(s)
		return o.Value, ok
	})
	c.Country = enumField(raw, models.FieldCountry, errs, func(s string) (string, bool) {
		o, ok := v.vocab.Country(s)
		return o.Value, ok
	})
	c.Era = enumField(raw, models.FieldEra, errs, func(s string) (string, bool) {
		e, ok := v.vocab.Era(s)
		return e.Value, ok
	})
	c.Popularity = enumField(raw, models.FieldPopularity, errs, func(s string) (string, bool) {
		o, ok := v.vocab.Popularity(s)
		return o.Value, ok
	})

	c.Genres = v.validateGenres(raw, errs)
	c.RequestedCount = v.validateCount(raw, errs)

	if len(errs) > 0 {
		return models.PreferenceCriteria{}, &models.ValidationError{Fields: errs}
	}
	return c, nil
}

func (v *PreferenceValidator) validateMood(raw models.RawPreferences, c *models.PreferenceCriteria, errs models.FieldErrors) {
	field := models.FieldMoodMode
	if _, present := raw[field]; !present {
		if _, legacy := raw[models.FieldMoodOption]; legacy {
			field = models.FieldMoodOption
		}
	}
	mode, ok := parseMoodMode(rawString(raw, field))
	if !ok {
		errs.Add(field, msgMoodMode)
		return
	}
	c.MoodMode = mode

	switch mode {
	case models.MoodChosen:
		selected := strings.TrimSpace(rawString(raw, models.FieldSelectedMood))
		if validation.Check(selected, "required") != nil {
			errs.Add(models.FieldSelectedMood, msgSelectMood)
			return
		}
		mood, ok := v.vocab.Mood(selected)
		if !ok {
			errs.Add(models.FieldSelectedMood, msgUnknownMood)
			return
		}
		c.Mood = mood
	case models.MoodDescribed:
		custom := strings.TrimSpace(rawString(raw, models.FieldCustomMood))
		if validation.Check(custom, "required") != nil {
			errs.Add(models.FieldCustomMood, msgDescribeMood)
			return
		}
		c.Mood = custom
	}
}

func (v *PreferenceValidator) validateGenres(raw models.RawPreferences, errs models.FieldErrors) []string {
	seen := make(map[string]bool)
	var genres []string
	for _, token := range rawStrings(raw, models.FieldGenres) {
		if strings.TrimSpace(token) == "" {
			continue
		}
		g, ok := v.vocab.Genre(token)
		if !ok {
			errs.Add(models.FieldGenres, fmt.Sprintf("Unknown genre %q.", strings.TrimSpace(token)))
			continue
		}
		if seen[g.Value] {
			continue
		}
		seen[g.Value] = true
		genres = append(genres, g.Value)
	}
	if len(genres) == 0 {
		errs.Add(models.FieldGenres, msgSelectGenre)
	}
	return genres
}

func (v *PreferenceValidator) validateCount(raw models.RawPreferences, errs models.FieldErrors) int {
	n, ok := rawInt(raw[models.FieldMovieCount])
	if !ok {
		errs.Add(models.FieldMovieCount, msgMovieCountNaN)
		return 0
	}
	if f := validation.Check(n, fmt.Sprintf("min=1,max=%d", v.maxCount)); f != nil {
		if f.Tag == "max" {
			errs.Add(models.FieldMovieCount, fmt.Sprintf("Maximum %d movies.", v.maxCount))
		} else {
			errs.Add(models.FieldMovieCount, msgMinMovies)
		}
		return 0
	}
	return n
}

// parseMoodMode accepts the canonical names and the client's choose/describe.
// A missing mode defaults to choosing from the list.
func parseMoodMode(s string) (models.MoodMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chosen", "choose":
		return models.MoodChosen, true
	case "described", "describe":
		return models.MoodDescribed, true
	}
	return "", false
}

// enumField resolves an ANY-or-vocabulary field. Blank means ANY.
func enumField(raw models.RawPreferences, field string, errs models.FieldErrors, lookup func(string) (string, bool)) string {
	token := strings.TrimSpace(rawString(raw, field))
	if token == "" || strings.EqualFold(token, models.Any) {
		return models.Any
	}
	value, ok := lookup(token)
	if !ok {
		errs.Add(field, fmt.Sprintf("Unknown %s %q.", field, token))
		return ""
	}
	return value
}

func rawString(raw models.RawPreferences, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	case []any:
		if len(v) == 1 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(v) == 1 {
			return v[0]
		}
	}
	return ""
}

// rawStrings reads a list field; a plain string is split on commas.
func rawStrings(raw models.RawPreferences, key string) []string {
	switch v := raw[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(v, ",")
	}
	return nil
}

func rawInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := strconv.Atoi(v.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}
