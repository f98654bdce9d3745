package credential

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// keypair holds the resolved signing material for one credential kind.
// For HS256 fallback signKey == verifyKey (the shared secret).
type keypair struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	degraded  bool
}

// resolveKeypair parses the PEM halves of a keypair, selecting RS256 or
// ES256 from the PEM headers. Any missing or unparsable material falls back
// to HS256 with the shared secret; the degraded flag records that the
// configured asymmetric mode was not achieved.
func resolveKeypair(privPEM, pubPEM, fallbackSecret string) keypair {
	priv := normalizePEM(privPEM)
	pub := normalizePEM(pubPEM)

	if priv == "" || pub == "" {
		return symmetricKeypair(fallbackSecret)
	}

	if isECPEM(priv) {
		signKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(priv))
		if err != nil {
			return symmetricKeypair(fallbackSecret)
		}
		verifyKey, err := jwt.ParseECPublicKeyFromPEM([]byte(pub))
		if err != nil {
			return symmetricKeypair(fallbackSecret)
		}
		return keypair{method: jwt.SigningMethodES256, signKey: signKey, verifyKey: verifyKey}
	}

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(priv))
	if err != nil {
		return symmetricKeypair(fallbackSecret)
	}
	verifyKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pub))
	if err != nil {
		return symmetricKeypair(fallbackSecret)
	}
	return keypair{method: jwt.SigningMethodRS256, signKey: signKey, verifyKey: verifyKey}
}

// symmetricKeypair is always marked degraded: asymmetric signing was either
// not configured or not parsable, and HS256 with a deployment secret is a
// weaker posture than the configured intent.
func symmetricKeypair(secret string) keypair {
	key := []byte(secret)
	return keypair{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
		degraded:  true,
	}
}

// normalizePEM supports single-line env vars carrying literal \n sequences.
func normalizePEM(pem string) string {
	return strings.TrimSpace(strings.ReplaceAll(pem, `\n`, "\n"))
}

func isECPEM(pem string) bool {
	return strings.Contains(pem, "EC PRIVATE KEY") || strings.Contains(pem, "EC PUBLIC KEY")
}
