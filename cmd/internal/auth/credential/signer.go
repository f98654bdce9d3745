package credential

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the claim set carried by access credentials.
type AccessClaims struct {
	Role   string   `json:"role,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh credentials.
type RefreshClaims struct {
	DeviceID string `json:"deviceId,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies signed, time-bounded credentials.
//
// Key material is resolved once at construction and read-only afterwards;
// a Signer is safe for concurrent use without locking.
type Signer struct {
	cfg     Config
	access  keypair
	refresh keypair
}

// NewSigner constructs a Signer from an immutable Config.
//
// Missing or malformed keypairs never fail construction; they resolve to
// HS256 fallback, observable via Degraded().
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrConfig
	}
	if cfg.ClockSkew < 0 {
		return nil, ErrConfig
	}
	if strings.TrimSpace(cfg.FallbackSecret) == "" {
		cfg.FallbackSecret = "development"
	}

	return &Signer{
		cfg:     cfg,
		access:  resolveKeypair(cfg.AccessPrivateKeyPEM, cfg.AccessPublicKeyPEM, cfg.FallbackSecret),
		refresh: resolveKeypair(cfg.RefreshPrivateKeyPEM, cfg.RefreshPublicKeyPEM, cfg.FallbackSecret),
	}, nil
}

// Degraded reports whether either credential kind is running on the HS256
// fallback instead of an asymmetric keypair.
func (s *Signer) Degraded() bool {
	return s.access.degraded || s.refresh.degraded
}

// AccessTTL returns the configured access credential lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL returns the configured refresh credential lifetime.
func (s *Signer) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssueAccess mints an access credential for subject with the given role and
// scopes. No persistence side effects.
func (s *Signer) IssueAccess(subject, role string, scopes []string, now time.Time) (token string, exp time.Time, err error) {
	exp = now.Add(s.cfg.AccessTTL)

	claims := AccessClaims{
		Role:   role,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err = jwt.NewWithClaims(s.access.method, claims).SignedString(s.access.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueRefresh mints a refresh credential for subject bound to deviceID and
// returns its token id. The caller persists the token id and a hash of the
// raw credential; this function has no persistence side effects.
func (s *Signer) IssueRefresh(subject, deviceID string, now time.Time) (token, tokenID string, exp time.Time, err error) {
	tokenID = uuid.NewString()
	exp = now.Add(s.cfg.RefreshTTL)

	claims := RefreshClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err = jwt.NewWithClaims(s.refresh.method, claims).SignedString(s.refresh.signKey)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, tokenID, exp, nil
}

// VerifyAccess validates signature and expiry of an access credential.
// Every failure maps to ErrInvalidCredential.
func (s *Signer) VerifyAccess(token string, now time.Time) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.verify(s.access, token, now, &claims); err != nil {
		return AccessClaims{}, ErrInvalidCredential
	}
	if claims.Subject == "" || claims.ID == "" {
		return AccessClaims{}, ErrInvalidCredential
	}
	return claims, nil
}

// VerifyRefresh validates signature and expiry of a refresh credential.
// Every failure maps to ErrInvalidCredential.
func (s *Signer) VerifyRefresh(token string, now time.Time) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.verify(s.refresh, token, now, &claims); err != nil {
		return RefreshClaims{}, ErrInvalidCredential
	}
	if claims.Subject == "" || claims.ID == "" {
		return RefreshClaims{}, ErrInvalidCredential
	}
	return claims, nil
}

func (s *Signer) verify(kp keypair, token string, now time.Time, claims jwt.Claims) error {
	if strings.TrimSpace(token) == "" || len(token) > 4096 {
		return ErrInvalidCredential
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{kp.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if s.cfg.ClockSkew > 0 {
		options = append(options, jwt.WithLeeway(s.cfg.ClockSkew))
	}
	if s.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.cfg.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return kp.verifyKey, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidCredential
	}
	return nil
}
