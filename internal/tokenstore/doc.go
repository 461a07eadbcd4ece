// Package tokenstore provides persistent storage abstractions for credential fields.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Env: Read-only environment variable access (requires external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Interactive login requires writable storage (file or keyring), while a token
// provisioned out of band can be read from the env backend.
package tokenstore
