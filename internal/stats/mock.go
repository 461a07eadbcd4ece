package stats

import (
	"fmt"
	"math/rand/v2"
	"time"
)

var (
	mockArtists = []string{"The Weeknd", "Taylor Swift", "Drake", "Bad Bunny", "BTS", "Dua Lipa", "Harry Styles", "Arctic Monkeys", "Kendrick Lamar", "SZA"}
	mockGenres  = []string{"pop", "r&b", "rap", "latino", "k-pop", "dance pop", "rock", "indie", "hip hop", "soul"}
	mockTracks  = []string{"Midnight City", "Blinding Lights", "As It Was", "Heat Waves", "Stay", "Levitating", "Peaches", "Bad Habits", "Shivers", "Cold Heart", "Anti-Hero", "Rich Flex", "Kill Bill", "Creepin", "Flowers", "Die For You", "Boys a liar", "Last Night", "Calm Down", "Daylight"}
)

func mockImages(seed int) []Image {
	sizes := []int{640, 300, 64}
	images := make([]Image, 0, len(sizes))
	for _, s := range sizes {
		images = append(images, Image{
			URL:    fmt.Sprintf("https://picsum.photos/%d/%d?random=%d", s, s, seed),
			Height: s,
			Width:  s,
		})
	}
	return images
}

// Mock generates demo dashboard data. The same seed yields the same numbers;
// now anchors the listening history.
func Mock(seed uint64, now time.Time, timeRange TimeRange) Dashboard {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	user := User{
		ID:          "mock_user",
		DisplayName: "Demo User",
		Email:       "demo@example.com",
		Product:     "premium",
		Images:      []Image{{URL: "https://picsum.photos/seed/user/200", Height: 200, Width: 200}},
		Followers:   12543,
	}

	artists := make([]Artist, len(mockArtists))
	for i, name := range mockArtists {
		artists[i] = Artist{
			ID:         fmt.Sprintf("fav_artist_%d", i),
			Name:       name,
			Popularity: 90 + i,
			Genres:     []string{mockGenres[i], mockGenres[(i+1)%len(mockGenres)]},
			Images:     mockImages(i + 10),
		}
	}

	tracks := make([]Track, len(mockTracks))
	for i, name := range mockTracks {
		tracks[i] = Track{
			ID:         fmt.Sprintf("track_%d", i),
			Name:       name,
			Popularity: 95 - i*2,
			DurationMs: 180000 + rng.IntN(60000),
			Album: Album{
				ID:          fmt.Sprintf("album_%d", i),
				Name:        fmt.Sprintf("Album %d", i+1),
				Images:      mockImages(i),
				ReleaseDate: "2023-01-01",
			},
			Artists: []Artist{{
				ID:   fmt.Sprintf("artist_%d", i),
				Name: mockArtists[i%len(mockArtists)],
			}},
		}
	}

	recent := make([]Play, 15)
	for i := range recent {
		recent[i] = Play{
			Track:    tracks[i%len(tracks)],
			PlayedAt: now.Add(-time.Duration(i) * 15 * time.Minute).UTC(),
		}
	}

	features := make([]AudioFeatures, len(tracks))
	for i, t := range tracks {
		features[i] = AudioFeatures{
			ID:               t.ID,
			Danceability:     0.4 + rng.Float64()*0.5,
			Energy:           0.4 + rng.Float64()*0.6,
			Key:              rng.IntN(11),
			Loudness:         -5 - rng.Float64()*5,
			Mode:             1,
			Speechiness:      0.05 + rng.Float64()*0.2,
			Acousticness:     rng.Float64() * 0.4,
			Instrumentalness: rng.Float64() * 0.1,
			Liveness:         0.1 + rng.Float64()*0.3,
			Valence:          0.2 + rng.Float64()*0.8,
			Tempo:            90 + rng.Float64()*60,
		}
	}

	d := Dashboard{
		TimeRange:     timeRange,
		Demo:          true,
		User:          user,
		TopTracks:     tracks,
		TopArtists:    artists,
		RecentTracks:  recent,
		AudioFeatures: features,
	}
	finish(&d)
	return d
}
