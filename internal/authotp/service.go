// Package authotp provides email+OTP authentication: passwords gate login,
// but a session is only issued after a one-time code sent by email is
// verified. Codes are bcrypt-hashed at rest and expire lazily — the stored
// timestamp is checked at verification time, never by a timer.
package authotp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidOTP         = errors.New("invalid or expired code")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	SetOTP(ctx context.Context, userID, otpHash string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, userID string) error
	MarkUserVerified(ctx context.Context, userID string) error
}

// Service provides registration, password check and OTP issue/verify.
type Service struct {
	store  UserStore
	otpTTL time.Duration
}

func NewService(store UserStore, otpTTL time.Duration) *Service {
	return &Service{store: store, otpTTL: otpTTL}
}

// RegisterRequest contains registration parameters
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResponse carries the plaintext code so the caller can email it.
type RegisterResponse struct {
	UserID string
	Code   string
}

// Register creates an unverified account and issues its first OTP.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}
	if len(req.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hash),
		IsVerified:   false,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.issueOTP(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &RegisterResponse{UserID: user.ID, Code: code}, nil
}

// Login checks the password and issues a fresh OTP for the account. The
// caller still has to verify the code before a session exists.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.User{}, "", ErrInvalidCredentials
	}

	code, err := s.issueOTP(ctx, user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, code, nil
}

// ResendOTP replaces any outstanding code for the account. The previous code
// stops working immediately — there is a single OTP slot per user.
func (s *Service) ResendOTP(ctx context.Context, email string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, "", ErrUserNotFound
	}
	code, err := s.issueOTP(ctx, user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, code, nil
}

// VerifyOTP checks the code against the stored hash and expiry. On success
// the slot is cleared and the account marked verified.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidOTP
	}
	if user.OTPHash == "" || user.OTPExpiresAt == nil {
		return store.User{}, ErrInvalidOTP
	}
	if time.Now().After(*user.OTPExpiresAt) {
		return store.User{}, ErrInvalidOTP
	}
	if bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(strings.TrimSpace(code))) != nil {
		return store.User{}, ErrInvalidOTP
	}

	if err := s.store.MarkUserVerified(ctx, user.ID); err != nil {
		return store.User{}, fmt.Errorf("mark verified: %w", err)
	}
	user.IsVerified = true
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	return user, nil
}

func (s *Service) issueOTP(ctx context.Context, userID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	if err := s.store.SetOTP(ctx, userID, string(hash), time.Now().Add(s.otpTTL)); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// generateCode produces a 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
