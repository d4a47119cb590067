package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/auth"
	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/event"
	"github.com/utafrali/MarketplaceGo/internal/policy"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	"github.com/utafrali/MarketplaceGo/pkg/pagination"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// UserService implements account management and authentication.
type UserService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.RefreshTokenRepository
	jwtManager *auth.JWTManager
	producer   *event.Producer
	logger     *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	jwtManager *auth.JWTManager,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		producer:   producer,
		logger:     logger,
	}
}

// RegisterInput holds the parameters for user registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// UpdateProfileInput holds the parameters for profile updates.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// ListUsersInput holds the filter parameters for listing users.
type ListUsersInput struct {
	Role       *string
	IsActive   *bool
	Pagination pagination.Params
}

// Register creates a new account and signs the user in. Self-registration is
// limited to the customer and vendor roles; admin accounts are promoted via
// AssignRole.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if role != domain.RoleCustomer && role != domain.RoleVendor {
		return nil, nil, apperrors.InvalidInput("role must be CUSTOMER or VENDOR")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)

	return user, pair, nil
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.TokenPair, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return pair, user, nil
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// fresh pair issued.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	stored, err := s.tokenRepo.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("refresh token not recognized")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.RevokedAt != nil {
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}
	if time.Now().UTC().After(stored.ExpiresAt) {
		return nil, apperrors.Unauthorized("refresh token has expired")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("get user for refresh: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := s.tokenRepo.Revoke(ctx, stored.TokenHash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes all refresh tokens of the acting user.
func (s *UserService) Logout(ctx context.Context, actor policy.Actor) error {
	if err := s.tokenRepo.RevokeByUserID(ctx, actor.ID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", actor.ID),
	)

	return nil
}

// GetProfile returns the actor's own account, or any account for admins.
func (s *UserService) GetProfile(ctx context.Context, actor policy.Actor, userID string) (*domain.User, error) {
	if err := policy.RequireOwner(actor, userID, "profile"); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// UpdateProfile modifies the actor's own account, or any account for admins.
func (s *UserService) UpdateProfile(ctx context.Context, actor policy.Actor, userID string, input UpdateProfileInput) (*domain.User, error) {
	if err := policy.RequireOwner(actor, userID, "profile"); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// ChangePassword verifies the current password and replaces it, revoking all
// outstanding refresh tokens.
func (s *UserService) ChangePassword(ctx context.Context, actor policy.Actor, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", actor.ID)
		}
		return fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if err := s.tokenRepo.RevokeByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ListUsers returns accounts matching the filter. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor policy.Actor, input ListUsersInput) (*pagination.Result[domain.User], error) {
	if err := policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	filter := repository.UserFilter{
		Role:     input.Role,
		IsActive: input.IsActive,
		Page:     input.Pagination.Page,
		PerPage:  input.Pagination.PerPage,
	}

	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	result := pagination.NewResult(users, total, input.Pagination)
	return &result, nil
}

// AssignRole changes an account's role. Admin only.
func (s *UserService) AssignRole(ctx context.Context, actor policy.Actor, userID, role string) (*domain.User, error) {
	if err := policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	if !domain.IsValidRole(role) {
		return nil, apperrors.InvalidInput("role must be CUSTOMER, VENDOR or ADMIN")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user for role change: %w", err)
	}

	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}

	s.logger.InfoContext(ctx, "role assigned",
		slog.String("user_id", userID),
		slog.String("role", role),
		slog.String("assigned_by", actor.ID),
	)

	return user, nil
}

// DeactivateUser disables an account and revokes its refresh tokens. Admin only.
func (s *UserService) DeactivateUser(ctx context.Context, actor policy.Actor, userID string) error {
	if err := policy.RequireAdmin(actor); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("get user for deactivation: %w", err)
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	if err := s.tokenRepo.RevokeByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user deactivated",
		slog.String("user_id", userID),
		slog.String("deactivated_by", actor.ID),
	)

	return nil
}

// DeleteUser removes an account. Admin only. Owned services, negotiations and
// reviews cascade in the store.
func (s *UserService) DeleteUser(ctx context.Context, actor policy.Actor, userID string) error {
	if err := policy.RequireAdmin(actor); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", userID),
		slog.String("deleted_by", actor.ID),
	)

	return nil
}

func (s *UserService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// Store only the hash; the token itself never touches the database.
	refreshClaims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("validate refresh token for expiry: %w", err)
	}

	if err := s.tokenRepo.Create(ctx, user.ID, hashToken(refreshToken), refreshClaims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// hashToken returns the hex-encoded SHA-256 of a refresh token; only hashes
// are persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain upper and lower case letters and a digit")
	}

	return nil
}
