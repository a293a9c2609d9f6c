package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"vibelink/config"
	"vibelink/internal/domain/user"
	"vibelink/internal/repository"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo   repository.UserRepository
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
	}
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Identity string
	Password string
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in"`
	SessionID    string   `json:"session_id"`
	User         UserInfo `json:"user"`
}

type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// AccessClaims is the verified identity a connection runs under:
// a user id plus the expiry the token-expiry sweep checks against.
type AccessClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	if err := validateRegister(in); err != nil {
		return AuthResponse{}, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return AuthResponse{}, vibelink_errors.ErrAlreadyExists
	}
	if _, err := s.userRepo.GetByUsername(ctx, in.Username); err == nil {
		return AuthResponse{}, vibelink_errors.ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	newUser := &user.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(in.Email),
		Username:     in.Username,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return AuthResponse{}, err
	}

	return s.issueTokens(ctx, *newUser)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	if in.Identity == "" || in.Password == "" {
		return AuthResponse{}, vibelink_errors.ErrInvalidInput
	}

	var u user.User
	var err error
	if strings.Contains(in.Identity, "@") {
		u, err = s.userRepo.GetByEmail(ctx, strings.ToLower(in.Identity))
	} else {
		u, err = s.userRepo.GetByUsername(ctx, in.Identity)
	}
	if err != nil {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	return s.issueTokens(ctx, u)
}

func (s *AuthService) Refresh(ctx context.Context, sessionID, refreshToken string) (AuthResponse, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	session, err := s.userRepo.GetSessionByID(ctx, sid)
	if err != nil {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}
	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	hash := hashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(session.RefreshTokenHash)) != 1 {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	u, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResponse{}, vibelink_errors.ErrUnauthorized
	}

	// Rotate: the old session is revoked and a new one issued.
	_ = s.userRepo.RevokeSession(ctx, session.ID)
	return s.issueTokens(ctx, u)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return vibelink_errors.ErrInvalidInput
	}
	return s.userRepo.RevokeSession(ctx, sid)
}

// ParseAccessToken verifies a bearer credential and resolves it to
// claims. Fails closed on missing, malformed, or expired tokens.
func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, vibelink_errors.ErrUnauthorized
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, vibelink_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, vibelink_errors.ErrTokenExpired
		}
		return nil, vibelink_errors.ErrUnauthorized
	}
	if !token.Valid || claims.UserID == "" {
		return nil, vibelink_errors.ErrUnauthorized
	}
	return claims, nil
}

// VerifyConnection resolves a handshake credential to an identity the
// realtime layer can trust, rejecting tokens for unknown users.
func (s *AuthService) VerifyConnection(ctx context.Context, tokenString string) (uuid.UUID, time.Time, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, time.Time{}, vibelink_errors.ErrUnauthorized
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return uuid.Nil, time.Time{}, vibelink_errors.ErrUnauthorized
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return userID, exp, nil
}

func (s *AuthService) issueTokens(ctx context.Context, u user.User) (AuthResponse, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return AuthResponse{}, err
	}

	refreshToken, err := randomToken()
	if err != nil {
		return AuthResponse{}, err
	}

	session := &user.Session{
		ID:               uuid.New(),
		UserID:           u.ID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        now.Add(s.refreshTTL),
		CreatedAt:        now,
	}
	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		SessionID:    session.ID.String(),
		User: UserInfo{
			ID:          u.ID.String(),
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Email:       u.Email,
		},
	}, nil
}

func validateRegister(in RegisterInput) error {
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return vibelink_errors.ErrInvalidInput
	}
	if len(in.Username) < 3 {
		return vibelink_errors.ErrInvalidInput
	}
	if len(in.Password) < 8 {
		return vibelink_errors.ErrInvalidInput
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type ctxKey string

var userIDKey ctxKey = "user_id"

func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
