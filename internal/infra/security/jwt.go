package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AccessTokenTTL is the validity window of an access token.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the validity window of a refresh token.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrTokenInvalid indicates a malformed token, a bad signature, or a
	// token signed with the wrong secret.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token verified but is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the user identifier on both token kinds.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed access and refresh tokens. The two
// kinds are signed with independent secrets so compromise of one cannot forge
// the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	now           func() time.Time
}

// NewTokenService constructs a TokenService from the two signing secrets.
func NewTokenService(accessSecret, refreshSecret, issuer string) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" {
		return nil, fmt.Errorf("access token secret is required")
	}
	if strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		now:           time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IssueAccessToken signs a short-lived token carrying the user identifier.
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, s.accessSecret, AccessTokenTTL)
}

// IssueRefreshToken signs a long-lived token carrying the user identifier.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, s.refreshSecret, RefreshTokenTTL)
}

func (s *TokenService) issue(userID string, secret []byte, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := s.now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccessToken validates an access token and returns the user identifier.
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	return s.verify(token, s.accessSecret, false)
}

// VerifyRefreshToken validates a refresh token and returns the user identifier.
func (s *TokenService) VerifyRefreshToken(token string) (string, error) {
	return s.verify(token, s.refreshSecret, false)
}

// UserIDFromExpiredAccessToken extracts the user identifier from an access
// token whose signature checks out even if it has already expired. Logout
// accepts expired tokens best-effort so a stale tab can still end its session.
func (s *TokenService) UserIDFromExpiredAccessToken(token string) (string, error) {
	return s.verify(token, s.accessSecret, true)
}

// verify fails closed: any parse, signature, or claim failure maps onto
// ErrTokenInvalid, with expiry separated out for the callers that care.
func (s *TokenService) verify(token string, secret []byte, allowExpired bool) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Claims are decoded before validation, so the identifier is
			// trustworthy here: the signature already verified.
			if allowExpired && strings.TrimSpace(claims.UserID) != "" {
				return claims.UserID, nil
			}
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
