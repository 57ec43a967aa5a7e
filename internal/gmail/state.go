package gmail

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"finsync/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateAudience = "finsync-gmail-consent"

// StateCodec turns a user id into the opaque OAuth state parameter and back.
// States are HS256 tokens with a short lifetime and are accepted once.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // jti -> expiry
}

func NewStateCodec(secret []byte, ttl time.Duration) *StateCodec {
	return &StateCodec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		used:   make(map[string]time.Time),
	}
}

// Issue returns a fresh state token for userID.
func (c *StateCodec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return s, nil
}

// Consume validates state and returns the user id it carries. A state can be
// consumed once; replays fail with model.ErrInvalidState.
func (c *StateCodec) Consume(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidState, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", fmt.Errorf("%w: missing subject or id", model.ErrInvalidState)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for jti, exp := range c.used {
		if now.After(exp) {
			delete(c.used, jti)
		}
	}
	if _, seen := c.used[claims.ID]; seen {
		return "", fmt.Errorf("%w: state already used", model.ErrInvalidState)
	}
	c.used[claims.ID] = claims.ExpiresAt.Time
	return claims.Subject, nil
}
