package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/security"
)

const minPasswordLength = 6

// Service manages accounts and resolves bearer tokens to identities.
type Service struct {
	repo      Repository
	tokens    *security.TokenService
	allowList map[string]struct{}
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, tokens *security.TokenService, verifierAllowList []string, logger *zap.Logger) *Service {
	allow := make(map[string]struct{}, len(verifierAllowList))
	for _, email := range verifierAllowList {
		allow[normalizeEmail(email)] = struct{}{}
	}
	return &Service{
		repo:      repo,
		tokens:    tokens,
		allowList: allow,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckEligibility reports whether email may register as an NCCR verifier.
func (s *Service) CheckEligibility(email string) EligibilityResult {
	if _, ok := s.allowList[normalizeEmail(email)]; ok {
		return EligibilityResult{IsAllowed: true, Message: "Email is authorized for NCCR Verifier role"}
	}
	return EligibilityResult{
		IsAllowed: false,
		Message:   "Email is not authorized for NCCR Verifier role. Please contact the administrator.",
	}
}

// Signup creates an account. Role defaults to buyer; nccr_verifier is limited
// to the allow-list.
func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*SignupResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.Validation("Invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password should be at least 6 characters")
	}

	role := req.Role
	if role == "" {
		role = RoleBuyer
	}
	if !role.Valid() {
		return nil, apperrors.Validation("Invalid role")
	}
	if role == RoleNCCRVerifier && !s.CheckEligibility(email).IsAllowed {
		return nil, apperrors.Forbidden("NCCR Verifier registration is restricted. Please contact the administrator for access approval.")
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           "user_" + uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return &SignupResponse{User: user.Public(), Role: role}, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.Unauthenticated("Invalid email or password")
	}
	if err != nil {
		return nil, apperrors.Upstream("Authentication failed", err)
	}
	if err := security.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to issue token", err)
	}
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user.Public(),
	}, nil
}

// Authenticate resolves an access token to the caller's identity.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated("No access token provided")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid access token")
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.Unauthenticated("User not found")
	}
	if err != nil {
		return nil, apperrors.Upstream("Authentication failed", err)
	}

	role := user.Role
	if role == "" {
		role = RoleBuyer
	}
	return &Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Role: role}, nil
}

// GetUser looks up an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}
