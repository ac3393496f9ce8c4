// Package auth provides optional API authentication for DEWHOME Core.
//
// A single operator account is configured with a username and an Argon2id
// password hash in PHC format. A successful login returns a short-lived
// HS256 JWT access token which the API checks on every protected request.
// Tokens are validated by signature and expiry only; there is no server-side
// session state.
//
// Generate a hash for the config file with:
//
//	dewhome --hash-password
package auth
