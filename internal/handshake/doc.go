// Package handshake drives one popup-based implicit-grant login to a single outcome.
//
// The opener side registers a listener on the process-wide message Bus, opens a
// browsing context at the authorization URL and then races three triggers:
//   - a LOGIN_SUCCESS message relayed from the popup (resolve with the token)
//   - the popup being observed closed by a 1s liveness poll (ErrCancelled)
//   - a 60s hard timeout, after which the popup is force-closed (ErrTimeout)
//
// The first trigger wins; the others are torn down and become no-ops.
//
// Messages are accepted by shape alone. The sender's origin is not verified.
package handshake
