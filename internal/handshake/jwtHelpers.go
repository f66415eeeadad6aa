package handshake

// jwtHelpers.go holds the claim-parsing and key-resolution helpers the
// JWT mechanism shares, grounded on the teacher's
// internal/auth/jwtHelpers.go.

import "github.com/golang-jwt/jwt/v5"

// parseAndVerify parses and validates a compact JWT, returning its
// claims as a flat map.
func parseAndVerify(token string, keyfunc jwt.Keyfunc) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyfunc)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// HMACKeyfunc builds a jwt.Keyfunc for a shared-secret HMAC-signed
// token — the common case for this mechanism's deployment, which has
// no external issuer/JWKS endpoint in scope.
func HMACKeyfunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}
}
