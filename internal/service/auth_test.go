package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validToken = "mmrag_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func activeUser(id string) *domain.User {
	return domain.NewUser(id, id+"@example.com", domain.UserRoleUser, domain.UserStatusActive, time.Now().UTC())
}

func TestAuthService_CreateUser(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)

	userRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == "user-1" && u.Email == "ada@example.com" && u.Role == domain.UserRoleUser && u.Status == domain.UserStatusActive
	})).Return(nil)

	svc := NewAuthService(userRepo, new(MockAPIKeyRepository), NewMockUUIDGenerator("user-1"))
	user, err := svc.CreateUser(ctx, "  Ada@Example.com ", "", "")

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	userRepo.AssertExpectations(t)
}

func TestAuthService_CreateUser_Invalid(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	svc := NewAuthService(userRepo, new(MockAPIKeyRepository), NewMockUUIDGenerator("user-1"))

	_, err := svc.CreateUser(ctx, "", domain.UserRoleUser, domain.UserStatusActive)
	assert.Error(t, err)

	_, err = svc.CreateUser(ctx, "not-an-email", domain.UserRoleUser, domain.UserStatusActive)
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeValidation, de.Code)

	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_SetUserStatus(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	userRepo.On("UpdateStatus", ctx, "user-1", domain.UserStatusDisabled).Return(nil)

	svc := NewAuthService(userRepo, new(MockAPIKeyRepository), nil)

	require.NoError(t, svc.SetUserStatus(ctx, "user-1", domain.UserStatusDisabled))
	assert.ErrorIs(t, svc.SetUserStatus(ctx, "user-1", "banned"), domain.ErrInvalidUserStatus)
	userRepo.AssertExpectations(t)
}

func TestAuthService_CreateAPIKey_GeneratesPrefixedToken(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	keyRepo := new(MockAPIKeyRepository)

	userRepo.On("GetByID", ctx, "user-1").Return(activeUser("user-1"), nil)

	var captured *domain.APIKey
	keyRepo.On("Create", ctx, mock.MatchedBy(func(key *domain.APIKey) bool {
		captured = key
		return key.ID == "key-123" && key.UserID == "user-1" && len(key.KeyHash) == 64
	})).Return(nil)

	svc := NewAuthService(userRepo, keyRepo, NewMockUUIDGenerator("key-123"))
	token, err := svc.CreateAPIKey(ctx, "user-1", "laptop")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "mmrag_"))
	assert.Len(t, token, len("mmrag_")+64)
	assert.True(t, IsValidAPIToken(token))
	require.NotNil(t, captured)
	assert.NotEqual(t, token, captured.KeyHash)
	assert.Equal(t, hashToken(token), captured.KeyHash)
	keyRepo.AssertExpectations(t)
}

func TestAuthService_CreateAPIKey_Validation(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	keyRepo := new(MockAPIKeyRepository)
	userRepo.On("GetByID", ctx, "ghost").Return(nil, domain.ErrUserNotFound)

	svc := NewAuthService(userRepo, keyRepo, NewMockUUIDGenerator())

	_, err := svc.CreateAPIKey(ctx, "", "name")
	assert.Error(t, err)

	_, err = svc.CreateAPIKey(ctx, "user-1", "")
	assert.Error(t, err)

	_, err = svc.CreateAPIKey(ctx, "ghost", "name")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	keyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_ValidateAPIKey(t *testing.T) {
	ctx := context.Background()
	hash := hashToken(validToken)

	t.Run("valid token resolves user", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		keyRepo := new(MockAPIKeyRepository)
		keyRepo.On("GetByHash", ctx, hash).Return(domain.NewAPIKey("k", "user-1", "n", hash, time.Now(), nil), nil)
		userRepo.On("GetByID", ctx, "user-1").Return(activeUser("user-1"), nil)

		user, err := NewAuthService(userRepo, keyRepo, nil).ValidateAPIKey(ctx, validToken)

		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := NewAuthService(new(MockUserRepository), new(MockAPIKeyRepository), nil).ValidateAPIKey(ctx, "invalid-token")
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("unknown key", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		keyRepo.On("GetByHash", ctx, hash).Return(nil, domain.ErrAPIKeyNotFound)

		_, err := NewAuthService(new(MockUserRepository), keyRepo, nil).ValidateAPIKey(ctx, validToken)
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("revoked key", func(t *testing.T) {
		revokedAt := time.Now().UTC()
		keyRepo := new(MockAPIKeyRepository)
		keyRepo.On("GetByHash", ctx, hash).Return(domain.NewAPIKey("k", "user-1", "n", hash, time.Now(), &revokedAt), nil)

		_, err := NewAuthService(new(MockUserRepository), keyRepo, nil).ValidateAPIKey(ctx, validToken)
		assert.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
	})

	t.Run("inactive user", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		keyRepo := new(MockAPIKeyRepository)
		keyRepo.On("GetByHash", ctx, hash).Return(domain.NewAPIKey("k", "user-1", "n", hash, time.Now(), nil), nil)
		pending := activeUser("user-1")
		pending.Status = domain.UserStatusPending
		userRepo.On("GetByID", ctx, "user-1").Return(pending, nil)

		_, err := NewAuthService(userRepo, keyRepo, nil).ValidateAPIKey(ctx, validToken)
		assert.ErrorIs(t, err, domain.ErrUserInactive)
	})
}

func TestAuthService_RevokeAndList(t *testing.T) {
	ctx := context.Background()
	keyRepo := new(MockAPIKeyRepository)
	keyRepo.On("Revoke", ctx, "key-1").Return(nil)
	keyRepo.On("Revoke", ctx, "missing").Return(domain.ErrAPIKeyNotFound)
	keyRepo.On("ListByUser", ctx, "user-1").Return([]*domain.APIKey{{ID: "key-1"}}, nil)

	svc := NewAuthService(new(MockUserRepository), keyRepo, nil)

	require.NoError(t, svc.RevokeAPIKey(ctx, "key-1"))
	assert.ErrorIs(t, svc.RevokeAPIKey(ctx, "missing"), domain.ErrAPIKeyNotFound)
	assert.Error(t, svc.RevokeAPIKey(ctx, ""))

	keys, err := svc.ListAPIKeys(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = svc.ListAPIKeys(ctx, "")
	assert.Error(t, err)
}

func TestAuthService_EnsureBootstrapAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates admin and key once", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		keyRepo := new(MockAPIKeyRepository)
		userRepo.On("GetByEmail", ctx, "root@example.com").Return(nil, domain.ErrUserNotFound)
		userRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.IsAdmin() && u.IsActive()
		})).Return(nil)
		userRepo.On("GetByID", ctx, "admin-1").Return(activeUser("admin-1"), nil)
		keyRepo.On("Create", ctx, mock.MatchedBy(func(k *domain.APIKey) bool {
			return k.UserID == "admin-1" && k.KeyHash == hashToken(validToken)
		})).Return(nil)

		svc := NewAuthService(userRepo, keyRepo, NewMockUUIDGenerator("admin-1", "key-1"))
		user, created, err := svc.EnsureBootstrapAdmin(ctx, "root@example.com", validToken)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "admin-1", user.ID)
		keyRepo.AssertExpectations(t)
	})

	t.Run("existing user with registered key is left alone", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		keyRepo := new(MockAPIKeyRepository)
		userRepo.On("GetByEmail", ctx, "root@example.com").Return(activeUser("admin-1"), nil)
		keyRepo.On("GetByHash", ctx, hashToken(validToken)).Return(&domain.APIKey{ID: "key-1", UserID: "admin-1"}, nil)

		_, created, err := NewAuthService(userRepo, keyRepo, nil).EnsureBootstrapAdmin(ctx, "root@example.com", validToken)

		require.NoError(t, err)
		assert.False(t, created)
		keyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("existing user gets a missing bootstrap key", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		keyRepo := new(MockAPIKeyRepository)
		userRepo.On("GetByEmail", ctx, "root@example.com").Return(activeUser("admin-1"), nil)
		userRepo.On("GetByID", ctx, "admin-1").Return(activeUser("admin-1"), nil)
		keyRepo.On("GetByHash", ctx, hashToken(validToken)).Return(nil, domain.ErrAPIKeyNotFound)
		keyRepo.On("Create", ctx, mock.MatchedBy(func(k *domain.APIKey) bool {
			return k.UserID == "admin-1" && k.Name == "bootstrap"
		})).Return(nil)

		_, created, err := NewAuthService(userRepo, keyRepo, NewMockUUIDGenerator("key-9")).EnsureBootstrapAdmin(ctx, "Root@Example.com", validToken)

		require.NoError(t, err)
		assert.False(t, created)
		keyRepo.AssertExpectations(t)
	})
}

func TestIsValidAPIToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid token", validToken, true},
		{"valid uppercase", "mmrag_0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF", true},
		{"missing prefix", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", false},
		{"wrong prefix", "key_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", false},
		{"too short", "mmrag_0123456789abcdef", false},
		{"too long", validToken + "00", false},
		{"invalid chars", "mmrag_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdeg", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidAPIToken(tt.token))
		})
	}
}

func TestAuthService_CreateAPIKeyWithToken(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	keyRepo := new(MockAPIKeyRepository)

	userRepo.On("GetByID", ctx, "user-1").Return(activeUser("user-1"), nil)
	keyRepo.On("Create", ctx, mock.MatchedBy(func(key *domain.APIKey) bool {
		return key.UserID == "user-1" && key.Name == "ci"
	})).Return(nil)

	svc := NewAuthService(userRepo, keyRepo, NewMockUUIDGenerator("key-123"))

	require.NoError(t, svc.CreateAPIKeyWithToken(ctx, "user-1", "ci", validToken))
	assert.Error(t, svc.CreateAPIKeyWithToken(ctx, "user-1", "ci", "invalid-token"))
	keyRepo.AssertExpectations(t)
}
