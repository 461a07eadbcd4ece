package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopGenres(t *testing.T) {
	tests := []struct {
		name    string
		artists []Artist
		n       int
		want    []GenreShare
	}{
		{
			name:    "no genres",
			artists: []Artist{{Name: "a"}},
			n:       5,
			want:    []GenreShare{},
		},
		{
			name: "ranked by count and truncated",
			artists: []Artist{
				{Genres: []string{"pop", "rock"}},
				{Genres: []string{"pop", "jazz"}},
				{Genres: []string{"pop", "rock"}},
			},
			n: 2,
			want: []GenreShare{
				{Name: "pop", Count: 3, Percentage: 50},
				{Name: "rock", Count: 2, Percentage: 33},
			},
		},
		{
			name: "ties keep first-seen order",
			artists: []Artist{
				{Genres: []string{"b", "a"}},
			},
			n: 5,
			want: []GenreShare{
				{Name: "b", Count: 1, Percentage: 50},
				{Name: "a", Count: 1, Percentage: 50},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopGenres(tt.artists, tt.n))
		})
	}
}

func TestAura(t *testing.T) {
	assert.Equal(t, AuraProfile{}, Aura(nil))

	p := Aura([]AudioFeatures{
		{Danceability: 0.2, Energy: 1, Valence: 0.5},
		{Danceability: 0.4, Energy: 0, Valence: 0.5, Speechiness: 0.2},
	})
	assert.InDelta(t, 0.3, p.Danceability, 1e-9)
	assert.InDelta(t, 0.5, p.Energy, 1e-9)
	assert.InDelta(t, 0.5, p.Valence, 1e-9)
	assert.InDelta(t, 0.1, p.Speechiness, 1e-9)
}

func TestSummarize(t *testing.T) {
	k := Summarize(Dashboard{
		User:          User{Followers: 9},
		TopArtists:    []Artist{{Name: "First", Genres: []string{"a", "b"}}, {Name: "Second", Genres: []string{"b"}}},
		AudioFeatures: []AudioFeatures{{Energy: 0.5}, {Energy: 0.9}},
	})
	assert.Equal(t, KPIs{TopArtist: "First", AvgEnergy: 70, UniqueGenres: 2, Followers: 9}, k)

	assert.Equal(t, KPIs{}, Summarize(Dashboard{}))
}

func TestParseTimeRange(t *testing.T) {
	r, err := ParseTimeRange("")
	require.NoError(t, err)
	assert.Equal(t, ShortTerm, r)

	r, err = ParseTimeRange("long_term")
	require.NoError(t, err)
	assert.Equal(t, "Lifetime", r.Label())

	_, err = ParseTimeRange("forever")
	assert.Error(t, err)
}

func TestMock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := Mock(3, now, ShortTerm)

	assert.True(t, d.Demo)
	assert.Equal(t, "Last 4 Weeks", d.TimeRangeLabel)
	assert.Len(t, d.TopArtists, 10)
	assert.Len(t, d.TopTracks, 20)
	assert.Len(t, d.RecentTracks, 15)
	assert.Len(t, d.AudioFeatures, 20)
	assert.Equal(t, now, d.RecentTracks[0].PlayedAt)
	assert.Equal(t, now.Add(-15*time.Minute), d.RecentTracks[1].PlayedAt)
	assert.Equal(t, "The Weeknd", d.KPIs.TopArtist)
	assert.Equal(t, 10, d.KPIs.UniqueGenres)
	assert.Len(t, d.Genres, 5)

	for _, f := range d.AudioFeatures {
		assert.GreaterOrEqual(t, f.Energy, 0.4)
		assert.LessOrEqual(t, f.Energy, 1.0)
	}

	assert.Equal(t, d, Mock(3, now, ShortTerm), "same seed must yield the same data")
}
