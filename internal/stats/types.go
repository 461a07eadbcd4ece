// Package stats loads the listening statistics shown on the dashboard.
//
// Data comes from the Spotify Web API when a credential is available and falls
// back to deterministic demo data otherwise.
package stats

import "time"

// Image is a sized artwork reference.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// User is the profile of the signed-in listener.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
	Product     string  `json:"product,omitempty"`
	Images      []Image `json:"images"`
	Followers   int     `json:"followers"`
}

// Artist is an artist reference, fully populated for top artists.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Images     []Image  `json:"images,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Album is the album a track belongs to.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Images      []Image `json:"images"`
	ReleaseDate string  `json:"release_date"`
}

// Track is a single track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMs int      `json:"duration_ms"`
	Popularity int      `json:"popularity"`
	PreviewURL string   `json:"preview_url,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Play is one entry of the listening history.
type Play struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// AudioFeatures describes the acoustic profile of a track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
}

// Dashboard is everything the dashboard renders for one time range.
type Dashboard struct {
	TimeRange      TimeRange       `json:"time_range"`
	TimeRangeLabel string          `json:"time_range_label"`
	Demo           bool            `json:"demo"`
	User           User            `json:"user"`
	TopTracks      []Track         `json:"top_tracks"`
	TopArtists     []Artist        `json:"top_artists"`
	RecentTracks   []Play          `json:"recent_tracks"`
	AudioFeatures  []AudioFeatures `json:"audio_features"`
	Genres         []GenreShare    `json:"genres"`
	Aura           AuraProfile     `json:"aura"`
	KPIs           KPIs            `json:"kpis"`
}
