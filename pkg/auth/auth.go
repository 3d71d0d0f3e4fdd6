// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package auth resolves the player identity of an incoming connection from its bearer token.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/AccelByte/go-jose"
	"github.com/AccelByte/go-jose/jwt"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

const (
	accessTokenQueryParam = "access_token"
	playerIDQueryParam    = "playerId"
)

type Identity struct {
	PlayerID    string
	DisplayName string
}

type playerClaims struct {
	PlayerID    string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Verifier checks HS256 signed player tokens. A verifier without signing key trusts the playerId query parameter
// and must only be used for local development.
type Verifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(signingKey string, issuer string) *Verifier {
	return &Verifier{
		key:    []byte(signingKey),
		issuer: issuer,
		now:    time.Now,
	}
}

// Insecure reports whether tokens are not verified.
func (v *Verifier) Insecure() bool {
	return len(v.key) == 0
}

// Verify validates the signature, issuer and time claims of raw and returns the identity it carries.
func (v *Verifier) Verify(raw string) (Identity, error) {
	token, err := jwt.ParseSigned(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed token", models.ErrNotAuthenticated)
	}
	if len(token.Headers) != 1 || token.Headers[0].Algorithm != string(jose.HS256) {
		return Identity{}, fmt.Errorf("%w: unexpected signing algorithm", models.ErrNotAuthenticated)
	}

	var (
		claims jwt.Claims
		player playerClaims
	)
	if err := token.Claims(v.key, &claims, &player); err != nil {
		return Identity{}, fmt.Errorf("%w: invalid signature", models.ErrNotAuthenticated)
	}

	if err := claims.Validate(jwt.Expected{Issuer: v.issuer, Time: v.now()}); err != nil {
		return Identity{}, fmt.Errorf("%w: %s", models.ErrNotAuthenticated, err.Error())
	}

	playerID := player.PlayerID
	if playerID == "" {
		playerID = claims.Subject
	}
	if playerID == "" {
		return Identity{}, fmt.Errorf("%w: token carries no player id", models.ErrNotAuthenticated)
	}

	return Identity{PlayerID: playerID, DisplayName: player.DisplayName}, nil
}

// Authenticate resolves the identity of a request from its Authorization header or access_token query parameter.
func (v *Verifier) Authenticate(r *http.Request) (Identity, error) {
	if v.Insecure() {
		playerID := strings.TrimSpace(r.URL.Query().Get(playerIDQueryParam))
		if playerID == "" {
			return Identity{}, fmt.Errorf("%w: missing %s", models.ErrNotAuthenticated, playerIDQueryParam)
		}
		return Identity{PlayerID: playerID}, nil
	}

	raw := TokenFromRequest(r)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing bearer token", models.ErrNotAuthenticated)
	}
	return v.Verify(raw)
}

// TokenFromRequest returns the bearer token of the request. Browsers cannot set headers on websocket upgrades, so
// the access_token query parameter is accepted too.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return r.URL.Query().Get(accessTokenQueryParam)
}
