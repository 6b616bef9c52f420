// Package token provides opaque token generation and at-rest token hashing
// for warden.
//
// Token values handed to callers are random base64url strings. Stores only
// ever persist a digest of the value:
//   - SHA-256(token) when no HMAC key is configured (dev mode);
//   - HMAC-SHA256(token, key) when WARDEN_TOKEN_HMAC_KEY is set.
//
// Digests are stable 64-char lowercase hex strings.
package token
