package stats

import (
	"math"
	"sort"
)

// GenreShare is the share of one genre among all genre mentions.
type GenreShare struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// TopGenres counts genre mentions across artists and returns the n most
// frequent with their rounded percentage of all mentions. Ties keep first-seen order.
func TopGenres(artists []Artist, n int) []GenreShare {
	counts := make(map[string]int)
	var order []string
	total := 0
	for _, a := range artists {
		for _, g := range a.Genres {
			if counts[g] == 0 {
				order = append(order, g)
			}
			counts[g]++
			total++
		}
	}
	if total == 0 || n <= 0 {
		return []GenreShare{}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}

	shares := make([]GenreShare, 0, len(order))
	for _, g := range order {
		shares = append(shares, GenreShare{
			Name:       g,
			Count:      counts[g],
			Percentage: int(math.Round(float64(counts[g]) / float64(total) * 100)),
		})
	}
	return shares
}

// AuraProfile holds mean audio features in [0, 1].
type AuraProfile struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Speechiness      float64 `json:"speechiness"`
}

// Aura averages the audio features of a set of tracks.
func Aura(features []AudioFeatures) AuraProfile {
	var p AuraProfile
	if len(features) == 0 {
		return p
	}
	for _, f := range features {
		p.Danceability += f.Danceability
		p.Energy += f.Energy
		p.Valence += f.Valence
		p.Acousticness += f.Acousticness
		p.Instrumentalness += f.Instrumentalness
		p.Speechiness += f.Speechiness
	}
	n := float64(len(features))
	p.Danceability /= n
	p.Energy /= n
	p.Valence /= n
	p.Acousticness /= n
	p.Instrumentalness /= n
	p.Speechiness /= n
	return p
}

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	TopArtist    string `json:"top_artist"`
	AvgEnergy    int    `json:"avg_energy"`
	UniqueGenres int    `json:"unique_genres"`
	Followers    int    `json:"followers"`
}

// Summarize computes KPIs from dashboard data.
func Summarize(d Dashboard) KPIs {
	k := KPIs{Followers: d.User.Followers}
	if len(d.TopArtists) > 0 {
		k.TopArtist = d.TopArtists[0].Name
	}
	if len(d.AudioFeatures) > 0 {
		k.AvgEnergy = int(math.Round(Aura(d.AudioFeatures).Energy * 100))
	}

	genres := make(map[string]struct{})
	for _, a := range d.TopArtists {
		for _, g := range a.Genres {
			genres[g] = struct{}{}
		}
	}
	k.UniqueGenres = len(genres)
	return k
}

// finish fills the derived fields of d.
func finish(d *Dashboard) {
	d.TimeRangeLabel = d.TimeRange.Label()
	d.Genres = TopGenres(d.TopArtists, topGenresShown)
	d.Aura = Aura(d.AudioFeatures)
	d.KPIs = Summarize(*d)
}
