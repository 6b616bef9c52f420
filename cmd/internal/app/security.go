package app

import (
	"errors"
	"fmt"

	"warden/cmd/security/token"
)

// ValidateSecurityConfig enforces the token hashing policy at startup and
// returns the hasher the token service must use. Under RequireTokenHMAC a
// missing or short key fails fast instead of falling back to SHA-256.
func ValidateSecurityConfig(cfg Config) (token.Hasher, error) {
	h, err := token.HasherFromEnv(cfg.RequireTokenHMAC)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Hasher{}, errors.New("security policy: WARDEN_REQUIRE_TOKEN_HMAC=true but WARDEN_TOKEN_HMAC_KEY is missing")
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Hasher{}, fmt.Errorf("security policy: WARDEN_TOKEN_HMAC_KEY is too short (min %d bytes)", token.MinHMACKeyBytes)
	default:
		return token.Hasher{}, err
	}

	if cfg.RequireTokenHMAC && !h.Keyed() {
		return token.Hasher{}, errors.New("security policy: WARDEN_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return h, nil
}
