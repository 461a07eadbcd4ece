// Package spotifyauth builds the implicit-grant authorization URL for the
// Spotify accounts service and parses the credential it hands back.
//
// The implicit grant returns the access token in the redirect URL fragment
// rather than through a server-side code exchange:
//
//	https://accounts.spotify.com/authorize?client_id=...&response_type=token&redirect_uri=...&scope=...&show_dialog=true
//	http://127.0.0.1:8888#access_token=...&token_type=Bearer&expires_in=3600
//
// The fragment never reaches the HTTP server, so the page loaded at the redirect
// address has to read it client-side and forward it.
//
// # Redirect Address
//
// The accounts service matches redirect addresses exactly. RedirectURI derives
// the canonical form from the application's own load address and strips a single
// trailing slash, since that is how the address is usually registered:
//
//	spotifyauth.RedirectURI(mustParse("http://127.0.0.1:8888/")) // "http://127.0.0.1:8888"
package spotifyauth
