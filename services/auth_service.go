package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"debatehub/db"
	"debatehub/internal/ratelimit"
	"debatehub/metrics"
	"debatehub/models"
	"debatehub/structs"
	"debatehub/utils"

	"github.com/sirupsen/logrus"
)

const resetTokenTTL = time.Hour

type AuthResult struct {
	AccessToken string       `json:"accessToken"`
	User        *models.User `json:"user"`
}

// AuthService handles local accounts. Per-IP limits are applied by the HTTP layer; the
// per-address email limit lives here because only this service knows the address.
type AuthService struct {
	store   db.Store
	tokens  *utils.JWTManager
	mailer  Mailer
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	baseURL string
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewAuthService(store db.Store, tokens *utils.JWTManager, mailer Mailer, limiter *ratelimit.Limiter, m *metrics.Metrics, baseURL string, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		store:   store,
		tokens:  tokens,
		mailer:  mailer,
		limiter: limiter,
		metrics: m,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.WithField("component", "auth"),
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, User: user}, nil
}

func (s *AuthService) Signup(ctx context.Context, req *structs.SignUpRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = utils.ExtractNameFromEmail(email)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, conflictf("email is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.DisplayName); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("failed to send welcome email")
	}
	s.log.WithField("user_id", user.ID.Hex()).Info("user signed up")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req *structs.LoginRequest) (*AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrUnauthorized
	}
	return s.issue(user)
}

// ForgotPassword mails a reset link when the address is registered. Unknown addresses get
// the same silent success.
func (s *AuthService) ForgotPassword(ctx context.Context, req *structs.ForgotPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if _, err := s.limiter.Consume(ctx, email, ratelimit.ClassEmail); err != nil {
		var limited *ratelimit.RateLimitExceededError
		if !errors.As(err, &limited) {
			// same as the HTTP limiter: an unavailable store lets the request through
			s.log.WithError(err).WithField("class", ratelimit.ClassEmail).Error("rate limiter unavailable")
		} else {
			s.metrics.RateLimited(string(ratelimit.ClassEmail))
			return err
		}
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, err := utils.GenerateRandomToken(32)
	if err != nil {
		return err
	}
	expiry := s.now().Add(resetTokenTTL)
	user.ResetTokenHash = utils.HashToken(token)
	user.ResetTokenExpiry = &expiry
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, resetURL, user.DisplayName); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("failed to send password reset email")
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req *structs.ResetPasswordRequest) error {
	user, err := s.store.GetUserByResetToken(ctx, utils.HashToken(req.Token))
	if errors.Is(err, db.ErrNotFound) {
		return validationf("Reset token is invalid or has expired")
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.ResetTokenExpiry == nil || !s.now().Before(*user.ResetTokenExpiry) {
		return validationf("Reset token is invalid or has expired")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpiry = nil
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.log.WithField("user_id", user.ID.Hex()).Info("password reset")
	return nil
}
