package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitforge/internal/model"
	"habitforge/pkg/util"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newFakeUsers(), "secret", time.Hour, zap.NewNop())

	u, err := svc.Register(ctx, "  Alice@Example.com ", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "longenough", u.PasswordHash)

	token, err := svc.Login(ctx, "ALICE@example.com", "longenough")
	require.NoError(t, err)
	id, err := util.ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestAuthRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newFakeUsers(), "secret", 0, zap.NewNop())

	_, err := svc.Register(ctx, "not-an-email", "longenough")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Register(ctx, "bob@example.com", "short")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Register(ctx, "bob@example.com", "longenough")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "BOB@example.com", "different1")
	assert.ErrorIs(t, err, model.ErrEmailExists)
}

func TestAuthLoginRejects(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newFakeUsers(), "secret", time.Hour, zap.NewNop())
	_, err := svc.Register(ctx, "carol@example.com", "longenough")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol@example.com", "wrongpass")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}
