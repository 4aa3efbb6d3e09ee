package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swapmarket/internal/config"
	"swapmarket/internal/ids"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
	"swapmarket/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
)

const minPasswordLength = 8

type AuthService struct {
	store  repository.Store
	cfg    config.SecurityConfig
	hash   func(password string) ([]byte, error)
	tokens *security.TokenSigner
	now    func() time.Time
	log    zerolog.Logger
}

func NewAuthService(store repository.Store, cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	s := &AuthService{
		store: store,
		cfg:   cfg,
		hash:  security.HashPassword,
		now:   time.Now,
		log:   log,
	}
	s.tokens = security.NewTokenSigner(cfg.JWTAccessSecret, cfg.JWTAccessTTL, func() time.Time { return s.now() })
	return s
}

// WithPasswordHasher swaps the password hash function. Tests use cheaper
// argon2 parameters.
func (s *AuthService) WithPasswordHasher(hash func(password string) ([]byte, error)) *AuthService {
	s.hash = hash
	return s
}

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	DeviceID     string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	switch {
	case input.Name == "" || len(input.Name) > 50:
		return AuthResult{}, validationf("name is required and must be at most 50 characters")
	case !validEmail(input.Email):
		return AuthResult{}, validationf("a valid email is required")
	case len(input.Password) < minPasswordLength:
		return AuthResult{}, validationf("password must be at least %d characters", minPasswordLength)
	}

	passwordHash, err := s.hash(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	role := models.UserRoleUser
	if s.isAdminEmail(input.Email) {
		role = models.UserRoleAdmin
	}
	user := models.User{
		ID:           ids.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return AuthResult{}, translate(err)
	}

	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "New Device"
	}
	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.createSession(ctx, user, ids.New(), deviceName, input.IPAddress, input.UserAgent)
}

func (s *AuthService) isAdminEmail(email string) bool {
	for _, admin := range s.cfg.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), email) {
			return true
		}
	}
	return false
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.store.Users().FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	return s.createSession(ctx, user, deviceID, deviceName, input.IPAddress, input.UserAgent)
}

func (s *AuthService) createSession(
	ctx context.Context,
	user models.User,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        s.now().Add(s.cfg.JWTRefreshTTL),
	}

	accessToken, err := s.tokens.Sign(session, user.Role)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     deviceID,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	if s.cfg.MaxSessions <= 0 {
		return nil
	}
	count, err := s.store.Sessions().CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.MaxSessions {
		return nil
	}
	return s.store.Sessions().DeleteOldestSessions(ctx, userID, s.cfg.MaxSessions)
}

type RefreshInput struct {
	UserID       string
	RefreshToken string
	DeviceID     string
}

// Refresh rotates the refresh token of a device session and issues a new
// access token.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	user, err := s.store.Users().GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	sessions := s.store.Sessions()
	session, err := sessions.FindByRefreshHash(ctx, input.UserID, security.HashRefreshToken(input.RefreshToken))
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}
	if session.ExpiresAt.Before(s.now()) {
		_ = sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}
	session.RefreshTokenHash = newHash
	session.ExpiresAt = s.now().Add(s.cfg.JWTRefreshTTL)
	if err := sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := s.tokens.Sign(session, user.Role)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     session.DeviceID,
	}, nil
}

// SignOut ends the session that holds the presented refresh token.
func (s *AuthService) SignOut(ctx context.Context, input RefreshInput) error {
	sessions := s.store.Sessions()
	session, err := sessions.FindByRefreshHash(ctx, input.UserID, security.HashRefreshToken(input.RefreshToken))
	if err != nil || session.DeviceID != input.DeviceID {
		return ErrInvalidCredentials
	}
	if err := sessions.DeleteByID(ctx, session.ID); err != nil {
		return translate(err)
	}
	s.log.Info().Str("user_id", session.UserID).Str("device_id", session.DeviceID).Msg("signed out")
	return nil
}

// RevokeDevice ends another device session of an authenticated user.
func (s *AuthService) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	return translate(s.store.Sessions().DeleteByDevice(ctx, userID, deviceID))
}

// Authenticate resolves an access token to its active user and session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, security.AccessClaims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, security.AccessClaims{}, ErrInvalidCredentials
	}

	session, err := s.store.Sessions().GetByID(ctx, claims.SessionID)
	if err != nil || session.UserID != claims.UserID || session.DeviceID != claims.DeviceID {
		return models.User{}, security.AccessClaims{}, ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, security.AccessClaims{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return models.User{}, security.AccessClaims{}, ErrUserSuspended
	}
	return user, claims, nil
}

// Touch records activity on a session. Failures only get logged.
func (s *AuthService) Touch(ctx context.Context, sessionID, ip, userAgent string) {
	if err := s.store.Sessions().Touch(ctx, sessionID, ip, userAgent); err != nil {
		s.log.Debug().Err(err).Str("session_id", sessionID).Msg("touch session failed")
	}
}

func (s *AuthService) Sessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.store.Sessions().ListByUser(ctx, userID)
}
