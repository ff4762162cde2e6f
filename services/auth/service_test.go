package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUserRepo struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	copied := *user
	r.byEmail[user.Email] = &copied
	r.byID[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newTestService(t *testing.T, ttl time.Duration) (*Service, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewService(repo, "test-secret", ttl, zaptest.NewLogger(t)), repo
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		svc, repo := newTestService(t, time.Hour)

		user, err := svc.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.Equal(t, "seller@example.com", user.Email)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
		assert.NotEmpty(t, user.PasswordHash)

		stored, err := repo.GetByEmail(ctx, "seller@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)
	})

	t.Run("rejects short passwords", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		_, err := svc.Register(ctx, "seller@example.com", "short")
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		_, err := svc.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "seller@example.com", "another-pass")
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrDuplicateEmail)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a verifiable token", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		registered, err := svc.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		token, user, err := svc.Login(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, registered.ID, user.ID)

		claims, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, registered.ID.String(), claims.UserID)
		assert.Equal(t, "seller@example.com", claims.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		_, err := svc.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		_, _, err = svc.Login(ctx, "seller@example.com", "wrong-horse")
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		_, _, err := svc.Login(ctx, "nobody@example.com", "correct-horse")
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})
}

func TestService_ValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token", func(t *testing.T) {
		svc, _ := newTestService(t, -time.Minute)

		_, err := svc.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		token, _, err := svc.Login(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrTokenExpired)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc, _ := newTestService(t, time.Hour)

		_, err := svc.ValidateToken(ctx, "not.a.token")
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		issuer, repo := newTestService(t, time.Hour)
		_, err := issuer.Register(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		token, _, err := issuer.Login(ctx, "seller@example.com", "correct-horse")
		require.NoError(t, err)

		verifier := NewService(repo, "other-secret", time.Hour, zaptest.NewLogger(t))
		_, err = verifier.ValidateToken(ctx, token)
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})
}
