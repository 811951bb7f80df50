package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const (
	tokenIssuer   = "catalog-comb"
	tokenAudience = "catalog-comb-client"

	purposeAccess = "access"
	purposeReset  = "reset"

	keyBytesSize = 32
	keyHexSize   = 64
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the custom claims carried by every token.
type Claims struct {
	TokenID   string
	UserID    string
	Email     string
	Name      string
	Purpose   string
	ExpiresAt time.Time
}

type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	accessTTL    time.Duration
	resetTTL     time.Duration
}

// NewTokenService builds a v4.local token service. An empty keyHex generates
// a random key, so tokens do not survive a restart.
func NewTokenService(keyHex string, accessTTL, resetTTL time.Duration) (*TokenService, error) {
	var key paseto.V4SymmetricKey

	if keyHex == "" {
		key = paseto.NewV4SymmetricKey()
	} else {
		if len(keyHex) != keyHexSize {
			return nil, fmt.Errorf("PASETO v4 key must be exactly %d hex characters (%d bytes), got %d", keyHexSize, keyBytesSize, len(keyHex))
		}

		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
		}

		key, err = paseto.V4SymmetricKeyFromBytes(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
		}
	}

	return &TokenService{
		symmetricKey: key,
		accessTTL:    accessTTL,
		resetTTL:     resetTTL,
	}, nil
}

func (s *TokenService) GenerateAccessToken(identity Identity) (string, time.Time, error) {
	return s.generate(identity, purposeAccess, s.accessTTL)
}

func (s *TokenService) GenerateResetToken(identity Identity) (string, time.Time, error) {
	return s.generate(identity, purposeReset, s.resetTTL)
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, purposeAccess)
}

func (s *TokenService) VerifyResetToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, purposeReset)
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) generate(identity Identity, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	tokenID, err := generateID(tokenIDPrefix)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token ID: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(identity.UserID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiresAt)
	token.SetJti(tokenID)
	token.SetString("user_id", identity.UserID)
	token.SetString("email", identity.Email)
	token.SetString("name", identity.DisplayName)
	token.SetString("purpose", purpose)

	return token.V4Encrypt(s.symmetricKey, nil), expiresAt, nil
}

func (s *TokenService) verify(tokenString, purpose string) (*Claims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{}
	if claims.Purpose, err = token.GetString("purpose"); err != nil || claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: wrong purpose", ErrInvalidToken)
	}
	if claims.UserID, err = token.GetString("user_id"); err != nil || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidToken)
	}
	claims.Email, _ = token.GetString("email")
	claims.Name, _ = token.GetString("name")
	claims.TokenID, _ = token.GetJti()
	claims.ExpiresAt, _ = token.GetExpiration()

	return claims, nil
}
