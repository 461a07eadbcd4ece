package spotifyauth

import (
	"net/url"
)

// fragmentParam reads a parameter from the fragment of loc, never from the query.
func fragmentParam(loc *url.URL, name string) string {
	if loc == nil || loc.Fragment == "" {
		return ""
	}

	params, err := url.ParseQuery(loc.Fragment)
	if err != nil {
		return ""
	}
	return params.Get(name)
}

// TokenFromFragment returns the access_token carried in the fragment of loc, or "".
func TokenFromFragment(loc *url.URL) string {
	return fragmentParam(loc, "access_token")
}

// ErrorFromFragment returns the error code carried in the fragment of loc
// (e.g. "access_denied" when the user declines consent), or "".
func ErrorFromFragment(loc *url.URL) string {
	return fragmentParam(loc, "error")
}

// StripFragment returns loc without its fragment, suitable for replacing the
// visible address so the raw credential does not linger in history.
func StripFragment(loc *url.URL) string {
	if loc == nil {
		return ""
	}

	u := *loc
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
