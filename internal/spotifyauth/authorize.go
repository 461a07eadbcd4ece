package spotifyauth

import (
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// RedirectURI returns scheme, host and path of loc with one trailing slash stripped.
// Query and fragment are dropped. Returns "" for a nil or host-less location.
func RedirectURI(loc *url.URL) string {
	if loc == nil || loc.Host == "" {
		return ""
	}

	u := url.URL{
		Scheme: loc.Scheme,
		Host:   loc.Host,
		Path:   loc.Path,
	}
	return strings.TrimSuffix(u.String(), "/")
}

// AuthorizeURL builds the implicit-grant authorization URL.
// Returns "" if clientID is empty; callers must prompt for configuration instead of navigating.
func AuthorizeURL(endpoint oauth2.Endpoint, clientID, redirectURI string) string {
	if clientID == "" {
		return ""
	}

	cfg := &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURI,
		Scopes:      Scopes,
	}

	// AuthCodeURL defaults to the code flow; options override response_type.
	// An empty state is omitted from the URL.
	return cfg.AuthCodeURL("",
		oauth2.SetAuthURLParam("response_type", "token"),
		// Always render the consent screen so a cached grant can't silently re-authenticate
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}
