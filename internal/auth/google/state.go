package google

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateTTL bounds how long a user may sit on the consent screen.
const stateTTL = 15 * time.Minute

var errInvalidState = errors.New("invalid oauth state")

// State binds an authorization attempt to the user who started it and the
// connection name they asked for.
type State struct {
	UserID         string `json:"u"`
	ConnectionName string `json:"c"`
	jwt.RegisteredClaims
}

// stateCodec signs states as compact HS256 JWTs, which are URL-safe as is.
type stateCodec struct {
	secret []byte
	now    func() time.Time
}

func (c stateCodec) encode(userID, connectionName string) (string, error) {
	now := c.now()
	claims := State{
		UserID:         userID,
		ConnectionName: connectionName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

func (c stateCodec) decode(raw string) (*State, error) {
	var claims State
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidState, err)
	}
	if claims.UserID == "" {
		return nil, errInvalidState
	}
	return &claims, nil
}
