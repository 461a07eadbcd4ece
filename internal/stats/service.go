package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1/"

// Fetch sizes.
const (
	topTracksLimit   = 20
	topArtistsLimit  = 10
	recentPlaysLimit = 20
	topGenresShown   = 5
)

// Session is the credential holder the service reports rejected tokens to.
type Session interface {
	Logout(ctx context.Context) error
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.baseURL = strings.TrimSuffix(baseURL, "/") + "/"
		}
	}
}

// WithClock sets the clock used to anchor demo data.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithSeed fixes the demo data seed. By default every demo load differs.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = &seed
	}
}

// WithTransport sets the base transport below the bearer-token injection.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Service) {
		s.transport = rt
	}
}

// Service loads dashboards from the Spotify Web API.
type Service struct {
	tokens    oauth2.TokenSource
	session   Session
	baseURL   string
	clock     clockwork.Clock
	seed      *uint64
	transport http.RoundTripper
}

// New creates a Service authenticating with tokens. A 401 from the API is
// reported to session so the stored credential is discarded.
func New(tokens oauth2.TokenSource, session Session, opts ...Option) (*Service, error) {
	if tokens == nil {
		return nil, fmt.Errorf("missing token source")
	}
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}

	s := &Service{
		tokens:  tokens,
		session: session,
		baseURL: DefaultBaseURL,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Demo returns generated demo data for timeRange.
func (s *Service) Demo(timeRange TimeRange) Dashboard {
	now := s.clock.Now()
	seed := uint64(now.UnixNano())
	if s.seed != nil {
		seed = *s.seed
	}
	return Mock(seed, now, timeRange)
}

// Dashboard loads live data for timeRange. Without a usable credential, or on
// any API failure, it falls back to demo data with Demo set.
// Returns an error only if ctx is done.
func (s *Service) Dashboard(ctx context.Context, timeRange TimeRange) (Dashboard, error) {
	if _, err := s.tokens.Token(); err != nil {
		slog.DebugContext(ctx, "no usable credential, serving demo data", "error", err)
		return s.Demo(timeRange), nil
	}

	d, err := s.fetch(ctx, timeRange)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Dashboard{}, ctxErr
		}
		if isUnauthorized(err) {
			slog.WarnContext(ctx, "credential rejected by Spotify, logging out")
			if logoutErr := s.session.Logout(ctx); logoutErr != nil {
				slog.ErrorContext(ctx, "failed to clear rejected credential", "error", logoutErr)
			}
		}
		slog.WarnContext(ctx, "falling back to demo data", "error", err)
		return s.Demo(timeRange), nil
	}
	return d, nil
}

func (s *Service) client() *spotify.Client {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: s.tokens, Base: s.transport},
	}
	return spotify.New(httpClient, spotify.WithBaseURL(s.baseURL))
}

func (s *Service) fetch(ctx context.Context, timeRange TimeRange) (Dashboard, error) {
	client := s.client()

	var (
		user    *spotify.PrivateUser
		tracks  *spotify.FullTrackPage
		artists *spotify.FullArtistPage
		recent  []spotify.RecentlyPlayedItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = client.CurrentUser(gctx)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tracks, err = client.CurrentUsersTopTracks(gctx,
			spotify.Limit(topTracksLimit), spotify.Timerange(spotify.Range(timeRange)))
		if err != nil {
			return fmt.Errorf("fetch top tracks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		artists, err = client.CurrentUsersTopArtists(gctx,
			spotify.Limit(topArtistsLimit), spotify.Timerange(spotify.Range(timeRange)))
		if err != nil {
			return fmt.Errorf("fetch top artists: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = client.PlayerRecentlyPlayedOpt(gctx, &spotify.RecentlyPlayedOptions{Limit: recentPlaysLimit})
		if err != nil {
			return fmt.Errorf("fetch recently played: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TimeRange:     timeRange,
		User:          fromUser(user),
		TopTracks:     make([]Track, 0, len(tracks.Tracks)),
		TopArtists:    make([]Artist, 0, len(artists.Artists)),
		RecentTracks:  make([]Play, 0, len(recent)),
		AudioFeatures: []AudioFeatures{},
	}

	ids := make([]spotify.ID, 0, len(tracks.Tracks))
	for _, t := range tracks.Tracks {
		d.TopTracks = append(d.TopTracks, fromFullTrack(t))
		ids = append(ids, t.ID)
	}
	for _, a := range artists.Artists {
		d.TopArtists = append(d.TopArtists, fromFullArtist(a))
	}
	for _, item := range recent {
		d.RecentTracks = append(d.RecentTracks, Play{
			Track:    fromSimpleTrack(item.Track),
			PlayedAt: item.PlayedAt,
		})
	}

	if len(ids) > 0 {
		features, err := client.GetAudioFeatures(ctx, ids...)
		if err != nil {
			return Dashboard{}, fmt.Errorf("fetch audio features: %w", err)
		}
		for _, f := range features {
			// unknown tracks come back as null
			if f == nil {
				continue
			}
			d.AudioFeatures = append(d.AudioFeatures, fromAudioFeatures(f))
		}
	}

	finish(&d)
	return d, nil
}

func isUnauthorized(err error) bool {
	var apiErr spotify.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func fromImages(images []spotify.Image) []Image {
	out := make([]Image, 0, len(images))
	for _, img := range images {
		out = append(out, Image{URL: img.URL, Height: int(img.Height), Width: int(img.Width)})
	}
	return out
}

func fromUser(u *spotify.PrivateUser) User {
	return User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Product:     u.Product,
		Images:      fromImages(u.Images),
		Followers:   int(u.Followers.Count),
	}
}

func fromSimpleArtist(a spotify.SimpleArtist) Artist {
	return Artist{
		ID:   string(a.ID),
		Name: a.Name,
		URL:  a.ExternalURLs["spotify"],
	}
}

func fromFullArtist(a spotify.FullArtist) Artist {
	out := fromSimpleArtist(a.SimpleArtist)
	out.Genres = a.Genres
	out.Images = fromImages(a.Images)
	out.Popularity = int(a.Popularity)
	return out
}

func fromSimpleTrack(t spotify.SimpleTrack) Track {
	artists := make([]Artist, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, fromSimpleArtist(a))
	}
	return Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Artists:    artists,
		DurationMs: int(t.Duration),
		PreviewURL: t.PreviewURL,
		URL:        t.ExternalURLs["spotify"],
	}
}

func fromFullTrack(t spotify.FullTrack) Track {
	out := fromSimpleTrack(t.SimpleTrack)
	out.Popularity = int(t.Popularity)
	out.Album = Album{
		ID:          string(t.Album.ID),
		Name:        t.Album.Name,
		Images:      fromImages(t.Album.Images),
		ReleaseDate: t.Album.ReleaseDate,
	}
	return out
}

func fromAudioFeatures(f *spotify.AudioFeatures) AudioFeatures {
	return AudioFeatures{
		ID:               string(f.ID),
		Danceability:     float64(f.Danceability),
		Energy:           float64(f.Energy),
		Key:              int(f.Key),
		Loudness:         float64(f.Loudness),
		Mode:             int(f.Mode),
		Speechiness:      float64(f.Speechiness),
		Acousticness:     float64(f.Acousticness),
		Instrumentalness: float64(f.Instrumentalness),
		Liveness:         float64(f.Liveness),
		Valence:          float64(f.Valence),
		Tempo:            float64(f.Tempo),
	}
}
