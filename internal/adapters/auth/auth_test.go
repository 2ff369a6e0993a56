package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halalway/halalway/internal/core/domain"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret", "halalway")
	token, err := v.Issue(domain.AuthUser{UID: "u1", Email: "a@b.c"}, time.Hour)
	require.NoError(t, err)

	user, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UID)
	assert.Equal(t, "a@b.c", user.Email)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret", "halalway")

	expired, err := v.Issue(domain.AuthUser{UID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	other, err := NewVerifier("other", "halalway").Issue(domain.AuthUser{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	wrongIssuer, err := NewVerifier("secret", "someone-else").Issue(domain.AuthUser{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "halalway", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSession_NotifiesSubscribers(t *testing.T) {
	v := NewVerifier("secret", "")
	s := NewSession(v)
	assert.Nil(t, s.CurrentUser())

	var seen []*domain.AuthUser
	unsubscribe := s.Subscribe(func(u *domain.AuthUser) { seen = append(seen, u) })

	token, err := v.Issue(domain.AuthUser{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = s.SignIn(token)
	require.NoError(t, err)
	require.NoError(t, s.SignOut(context.Background()))

	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].UID)
	assert.Nil(t, seen[1])

	unsubscribe()
	_, err = s.SignIn(token)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, "u1", s.CurrentUser().UID)

	_, err = s.SignIn("garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "u1", s.CurrentUser().UID, "a failed sign-in keeps the current user")
}
