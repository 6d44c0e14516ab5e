package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseLabel(t *testing.T) {
	t.Parallel()

	for i, l := range Labels {
		got, err := ParseLabel(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
		assert.Equal(t, i, got.Index())
		assert.True(t, got.Valid())
	}

	_, err := ParseLabel("Unknown")
	require.ErrorIs(t, err, ErrUnknownLabel)
	_, err = ParseLabel("severe damage")
	require.ErrorIs(t, err, ErrUnknownLabel, "labels are case sensitive")

	assert.Equal(t, -1, Label("Collapsed").Index())
	assert.False(t, Label("").Valid())
}

func TestFromIndex(t *testing.T) {
	t.Parallel()

	l, ok := FromIndex(0)
	require.True(t, ok)
	assert.Equal(t, SevereDamage, l)

	l, ok = FromIndex(2)
	require.True(t, ok)
	assert.Equal(t, LightDamage, l)

	_, ok = FromIndex(3)
	assert.False(t, ok)
	_, ok = FromIndex(-1)
	assert.False(t, ok)
}

func TestMatchLocaleAndDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefs []string
		want  language.Tag
	}{
		{prefs: nil, want: language.English},
		{prefs: []string{"id-ID,id;q=0.9,en;q=0.8"}, want: language.Indonesian},
		{prefs: []string{"", "id"}, want: language.Indonesian},
		{prefs: []string{"fr-FR"}, want: language.English},
		{prefs: []string{"not a header;;"}, want: language.English},
	}
	for _, tt := range tests {
		got := MatchLocale(tt.prefs...)
		assert.Equal(t, tt.want, got, "prefs %v", tt.prefs)
	}

	assert.Equal(t, "Rusak Berat", SevereDamage.DisplayName(language.Indonesian))
	assert.Equal(t, "Rusak Menengah", ModerateDamage.DisplayName(language.Indonesian))
	assert.Equal(t, "Rusak Ringan", LightDamage.DisplayName(language.Indonesian))
	assert.Equal(t, "Light Damage", LightDamage.DisplayName(language.English))
}
