// Package detection holds the damage categories produced by the classifier
// and the result and event types shared by the classifier, the store and
// the event publishers.
package detection

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Label is one of the fixed damage categories.
type Label string

const (
	SevereDamage   Label = "Severe Damage"
	ModerateDamage Label = "Moderate Damage"
	LightDamage    Label = "Light Damage"
)

// Labels lists the categories in model output order. Index 0 is the most severe.
var Labels = []Label{SevereDamage, ModerateDamage, LightDamage}

// ErrUnknownLabel is returned by ParseLabel for strings outside the label set.
var ErrUnknownLabel = errors.New("unknown damage label")

// ParseLabel returns the Label whose canonical name equals s.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// FromIndex maps a model output index to its label.
func FromIndex(i int) (Label, bool) {
	if i < 0 || i >= len(Labels) {
		return "", false
	}
	return Labels[i], true
}

// Index returns the severity rank of l, or -1 if l is not a known label.
func (l Label) Index() int {
	for i, known := range Labels {
		if known == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l belongs to the label set.
func (l Label) Valid() bool {
	return l.Index() >= 0
}

func (l Label) String() string {
	return string(l)
}

var (
	supportedLocales = []language.Tag{language.English, language.Indonesian}
	localeMatcher    = language.NewMatcher(supportedLocales)

	indonesianNames = map[Label]string{
		SevereDamage:   "Rusak Berat",
		ModerateDamage: "Rusak Menengah",
		LightDamage:    "Rusak Ringan",
	}
)

// MatchLocale picks the best supported display language for the given
// preferences, e.g. an Accept-Language header value followed by the
// configured default.
func MatchLocale(preferences ...string) language.Tag {
	var tags []language.Tag
	for _, p := range preferences {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supportedLocales[idx]
}

// DisplayName returns the label name in the given language. Stored and
// API values always use the canonical English name.
func (l Label) DisplayName(tag language.Tag) string {
	if tag == language.Indonesian {
		if name, ok := indonesianNames[l]; ok {
			return name
		}
	}
	return string(l)
}
