package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"
	pkgkafka "github.com/utafrali/MarketplaceGo/pkg/kafka"

	"github.com/utafrali/MarketplaceGo/internal/auth"
	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/event"
	"github.com/utafrali/MarketplaceGo/internal/policy"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	"github.com/utafrali/MarketplaceGo/pkg/pagination"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserRepository) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", 15*time.Minute, 7*24*time.Hour)
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func newTestUserService(
	userRepo *mockUserRepository,
	tokenRepo *mockRefreshTokenRepository,
) *UserService {
	return NewUserService(userRepo, tokenRepo, newTestJWTManager(), newTestEventProducer(), newTestLogger())
}

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func f64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool      { return &b }

func defaultTestPagination() pagination.Params {
	return pagination.DefaultParams()
}

func policyActor(id, role string) policy.Actor {
	return policy.Actor{ID: id, Role: role}
}

func customerActor(id string) policy.Actor {
	return policy.Actor{ID: id, Role: domain.RoleCustomer}
}

func vendorActor(id string) policy.Actor {
	return policy.Actor{ID: id, Role: domain.RoleVendor}
}

func adminActor(id string) policy.Actor {
	return policy.Actor{ID: id, Role: domain.RoleAdmin}
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	tokenRepo.On("Create", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	input := RegisterInput{
		Email:     "maria@example.com",
		Password:  "SecurePass123",
		FirstName: "Maria",
		LastName:  "Silva",
	}

	user, tokens, err := svc.Register(ctx, input)

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "maria@example.com", user.Email)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	userRepo.AssertExpectations(t)
	tokenRepo.AssertExpectations(t)
}

func TestRegister_VendorRole(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	tokenRepo.On("Create", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	user, _, err := svc.Register(ctx, RegisterInput{
		Email:     "vendor@example.com",
		Password:  "SecurePass123",
		FirstName: "Ana",
		LastName:  "Lopes",
		Role:      domain.RoleVendor,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleVendor, user.Role)
}

func TestRegister_AdminRoleRejected(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	user, tokens, err := svc.Register(context.Background(), RegisterInput{
		Email:    "boss@example.com",
		Password: "SecurePass123",
		Role:     domain.RoleAdmin,
	})

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "maria@example.com"))

	user, tokens, err := svc.Register(ctx, RegisterInput{
		Email:    "maria@example.com",
		Password: "SecurePass123",
	})

	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	userRepo.AssertExpectations(t)
}

func TestRegister_WeakPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1"},
		{"no uppercase", "securepass123"},
		{"no lowercase", "SECUREPASS123"},
		{"no digit", "SecurePassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := new(mockUserRepository)
			tokenRepo := new(mockRefreshTokenRepository)
			svc := newTestUserService(userRepo, tokenRepo)

			user, _, err := svc.Register(context.Background(), RegisterInput{
				Email:    "maria@example.com",
				Password: tt.password,
			})

			assert.Nil(t, user)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{
		ID:           "user-1",
		Email:        "maria@example.com",
		PasswordHash: hashForTest("SecurePass123"),
		Role:         domain.RoleCustomer,
		IsActive:     true,
	}

	userRepo.On("GetByEmail", ctx, "maria@example.com").Return(stored, nil)
	tokenRepo.On("Create", ctx, "user-1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	tokens, user, err := svc.Login(ctx, "maria@example.com", "SecurePass123")

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	userRepo.AssertExpectations(t)
	tokenRepo.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{
		ID:           "user-1",
		Email:        "maria@example.com",
		PasswordHash: hashForTest("SecurePass123"),
		IsActive:     true,
	}

	userRepo.On("GetByEmail", ctx, "maria@example.com").Return(stored, nil)

	tokens, user, err := svc.Login(ctx, "maria@example.com", "WrongPass456")

	assert.Nil(t, tokens)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UnknownEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(ctx, "ghost@example.com", "SecurePass123")

	// Unknown email and wrong password are indistinguishable to the caller.
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{
		ID:           "user-1",
		Email:        "maria@example.com",
		PasswordHash: hashForTest("SecurePass123"),
		IsActive:     false,
	}

	userRepo.On("GetByEmail", ctx, "maria@example.com").Return(stored, nil)

	_, _, err := svc.Login(ctx, "maria@example.com", "SecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Refresh Token Tests ---

func TestRefreshToken_RotatesToken(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	refreshToken, err := newTestJWTManager().GenerateRefreshToken("user-1")
	require.NoError(t, err)

	stored := &domain.RefreshToken{
		ID:        "token-1",
		UserID:    "user-1",
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	user := &domain.User{ID: "user-1", Email: "maria@example.com", Role: domain.RoleCustomer, IsActive: true}

	tokenRepo.On("GetByHash", ctx, hashToken(refreshToken)).Return(stored, nil)
	userRepo.On("GetByID", ctx, "user-1").Return(user, nil)
	tokenRepo.On("Revoke", ctx, stored.TokenHash).Return(nil)
	tokenRepo.On("Create", ctx, "user-1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	pair, err := svc.RefreshToken(ctx, refreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, refreshToken, pair.RefreshToken)
	tokenRepo.AssertExpectations(t)
}

func TestRefreshToken_RevokedTokenRejected(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	refreshToken, err := newTestJWTManager().GenerateRefreshToken("user-1")
	require.NoError(t, err)

	revokedAt := time.Now().UTC().Add(-time.Minute)
	stored := &domain.RefreshToken{
		ID:        "token-1",
		UserID:    "user-1",
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		RevokedAt: &revokedAt,
	}

	tokenRepo.On("GetByHash", ctx, hashToken(refreshToken)).Return(stored, nil)

	pair, err := svc.RefreshToken(ctx, refreshToken)

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshToken_Garbage(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	pair, err := svc.RefreshToken(context.Background(), "not-a-jwt")

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- Profile Tests ---

func TestGetProfile_OwnProfile(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", Email: "maria@example.com"}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)

	user, err := svc.GetProfile(ctx, customerActor("user-1"), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)
}

func TestGetProfile_OtherUserForbidden(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	user, err := svc.GetProfile(context.Background(), customerActor("user-1"), "user-2")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	userRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGetProfile_AdminSeesAnyProfile(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-2", Email: "other@example.com"}
	userRepo.On("GetByID", ctx, "user-2").Return(stored, nil)

	user, err := svc.GetProfile(ctx, adminActor("admin-1"), "user-2")

	require.NoError(t, err)
	assert.Equal(t, "user-2", user.ID)
}

func TestUpdateProfile_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", FirstName: "Maria", LastName: "Silva"}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)
	userRepo.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := svc.UpdateProfile(ctx, customerActor("user-1"), "user-1", UpdateProfileInput{
		FirstName: strPtr("Mariana"),
		Phone:     strPtr("+5511999990000"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Mariana", user.FirstName)
	assert.Equal(t, "Silva", user.LastName)
	assert.Equal(t, "+5511999990000", user.Phone)
	userRepo.AssertExpectations(t)
}

// --- Change Password Tests ---

func TestChangePassword_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", PasswordHash: hashForTest("OldPass123")}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)
	userRepo.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	tokenRepo.On("RevokeByUserID", ctx, "user-1").Return(nil)

	err := svc.ChangePassword(ctx, customerActor("user-1"), "OldPass123", "NewPass456")

	require.NoError(t, err)
	tokenRepo.AssertExpectations(t)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", PasswordHash: hashForTest("OldPass123")}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)

	err := svc.ChangePassword(ctx, customerActor("user-1"), "NotMyPass1", "NewPass456")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	userRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- Admin Operation Tests ---

func TestListUsers_AdminOnly(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	result, err := svc.ListUsers(context.Background(), vendorActor("vendor-1"), ListUsersInput{})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	userRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListUsers_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	users := []domain.User{{ID: "user-1"}, {ID: "user-2"}}
	userRepo.On("List", ctx, mock.AnythingOfType("repository.UserFilter")).Return(users, 2, nil)

	result, err := svc.ListUsers(ctx, adminActor("admin-1"), ListUsersInput{
		Role:       strPtr(domain.RoleCustomer),
		Pagination: defaultTestPagination(),
	})

	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
	assert.Equal(t, 2, result.TotalCount)
}

func TestAssignRole_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", Role: domain.RoleCustomer}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)
	userRepo.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := svc.AssignRole(ctx, adminActor("admin-1"), "user-1", domain.RoleVendor)

	require.NoError(t, err)
	assert.Equal(t, domain.RoleVendor, user.Role)
}

func TestAssignRole_InvalidRole(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	user, err := svc.AssignRole(context.Background(), adminActor("admin-1"), "user-1", "superuser")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAssignRole_NonAdminForbidden(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)

	_, err := svc.AssignRole(context.Background(), customerActor("user-1"), "user-2", domain.RoleVendor)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDeactivateUser_RevokesTokens(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestUserService(userRepo, tokenRepo)
	ctx := context.Background()

	stored := &domain.User{ID: "user-1", IsActive: true}
	userRepo.On("GetByID", ctx, "user-1").Return(stored, nil)
	userRepo.On("Update", ctx, mock.MatchedBy(func(u *domain.User) bool { return !u.IsActive })).Return(nil)
	tokenRepo.On("RevokeByUserID", ctx, "user-1").Return(nil)

	err := svc.DeactivateUser(ctx, adminActor("admin-1"), "user-1")

	require.NoError(t, err)
	userRepo.AssertExpectations(t)
	tokenRepo.AssertExpectations(t)
}

// --- Token Helper Tests ---

func TestHashToken_Deterministic(t *testing.T) {
	h1 := hashToken("some-refresh-token")
	h2 := hashToken("some-refresh-token")
	h3 := hashToken("another-token")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, validatePassword("SecurePass123"))
	assert.Error(t, validatePassword("short1A"))
	assert.Error(t, validatePassword("alllowercase1"))
	assert.Error(t, validatePassword("ALLUPPERCASE1"))
	assert.Error(t, validatePassword("NoDigitsHere"))
}
