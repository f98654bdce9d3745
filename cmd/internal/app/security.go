package app

import (
	"errors"

	"ecom/cmd/internal/auth/credential"
)

// ValidateSecurityConfig enforces the signing-key policy at startup.
//
// Fail-fast: production deployments set ECOM_REQUIRE_SIGNING_KEYS=true so a
// missing or malformed keypair stops the server instead of silently issuing
// credentials under the symmetric development fallback.
func ValidateSecurityConfig(cfg Config, signer *credential.Signer) error {
	if !cfg.RequireSigningKeys {
		return nil
	}
	if signer == nil {
		return errors.New("security policy: ECOM_REQUIRE_SIGNING_KEYS=true but no credential signer configured")
	}
	if signer.Degraded() {
		return errors.New("security policy: ECOM_REQUIRE_SIGNING_KEYS=true but signer is on the symmetric fallback; configure ECOM_ACCESS_TOKEN_* and ECOM_REFRESH_TOKEN_* key material")
	}
	return nil
}
