// Package identity issues and verifies admin session tokens.
//
// It provides:
//   - TokenIssuer: issues and verifies HS256 JWT session tokens
//   - RequireAdmin: Gin middleware enforcing Bearer session token authentication
package identity
