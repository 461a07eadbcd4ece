package spotifyauth

import (
	"golang.org/x/oauth2"
)

// Endpoint defines the OAuth2 endpoints for the Spotify accounts service.
// Only AuthURL is used by the implicit grant.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// Scopes are the permissions requested by the dashboard.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"user-read-recently-played",
}
