package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/dto"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/types"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/sirupsen/logrus"
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id uint64) error
}

type UserAuthService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*entity.User, error)
	ConfirmAccount(ctx context.Context, req *types.TokenRequest) error
	Login(ctx context.Context, req *types.LoginRequest) (*dto.LoginResult, error)
	RequestConfirmationCode(ctx context.Context, req *types.EmailRequest) error
	ForgotPassword(ctx context.Context, req *types.EmailRequest) error
	ValidateToken(ctx context.Context, req *types.TokenRequest) error
	ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error
	CurrentUser(ctx context.Context, userID uint64) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uint64, req *types.UpdateProfileRequest) (*entity.User, error)
	ChangePassword(ctx context.Context, userID uint64, req *types.ChangePasswordRequest) error
	CheckPassword(ctx context.Context, userID uint64, req *types.CheckPasswordRequest) error
	VerifySession(ctx context.Context, signed string) (*entity.User, error)
}

type userAuthService struct {
	db       *sql.DB
	userRepo userRepository
	tokens   *TokenIssuer
	sessions *SessionIssuer
	cfg      *config.Config
}

func NewUserAuthService(
	db *sql.DB,
	userRepo userRepository,
	tokens *TokenIssuer,
	sessions *SessionIssuer,
	cfg *config.Config,
) UserAuthService {
	return &userAuthService{
		db:       db,
		userRepo: userRepo,
		tokens:   tokens,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Register commits the user and only then mails the confirmation code. When
// the code cannot be issued the user row is removed again, so an email never
// points at an account that does not exist and no account is left without a
// code.
func (s *userAuthService) Register(ctx context.Context, req *types.RegisterRequest) (*entity.User, error) {
	email := NormalizeEmail(req.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := hashPassword(s.cfg.Password, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hashedPassword,
		IsConfirmed:  false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		return repository.NewUserRepository(tx).Create(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}

	if _, err = s.tokens.Issue(ctx, user, entity.TokenPurposeConfirmation); err != nil {
		if delErr := s.userRepo.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			logrus.WithError(delErr).WithField("user_id", user.ID).Error("failed to remove user after confirmation code failure")
		}
		return nil, err
	}

	return user, nil
}

func (s *userAuthService) ConfirmAccount(ctx context.Context, req *types.TokenRequest) error {
	token, err := s.tokens.Claim(ctx, req.Token, entity.TokenPurposeConfirmation)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	user.IsConfirmed = true
	user.UpdatedAt = time.Now()
	return s.userRepo.Update(ctx, user)
}

func (s *userAuthService) Login(ctx context.Context, req *types.LoginRequest) (*dto.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !passwordMatches(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsConfirmed {
		return nil, s.resendConfirmation(ctx, user)
	}

	ttl := s.cfg.JWT.SessionTTL
	if req.RememberMe {
		ttl = s.cfg.JWT.RememberMeTTL
	}

	signed, expiresAt, err := s.sessions.Issue(user.ID, ttl)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		Token:      signed,
		ExpiresAt:  expiresAt,
		RememberMe: req.RememberMe,
		User:       user,
	}, nil
}

// resendConfirmation always returns an error telling the caller why the
// login was refused.
func (s *userAuthService) resendConfirmation(ctx context.Context, user *entity.User) error {
	active, err := s.tokens.Active(ctx, user.ID, entity.TokenPurposeConfirmation)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrConfirmationPending
	}

	_, err = s.tokens.Issue(ctx, user, entity.TokenPurposeConfirmation)
	switch {
	case errors.Is(err, ErrTokenAlreadyIssued):
		return ErrConfirmationPending
	case err != nil:
		return err
	}
	return ErrAccountNotConfirmed
}

func (s *userAuthService) RequestConfirmationCode(ctx context.Context, req *types.EmailRequest) error {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	active, err := s.tokens.Active(ctx, user.ID, entity.TokenPurposeConfirmation)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrTokenAlreadyIssued
	}

	if user.IsConfirmed {
		return ErrAccountAlreadyConfirmed
	}

	_, err = s.tokens.Issue(ctx, user, entity.TokenPurposeConfirmation)
	return err
}

func (s *userAuthService) ForgotPassword(ctx context.Context, req *types.EmailRequest) error {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	active, err := s.tokens.Active(ctx, user.ID, entity.TokenPurposeReset)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrTokenAlreadyIssued
	}

	_, err = s.tokens.Issue(ctx, user, entity.TokenPurposeReset)
	return err
}

func (s *userAuthService) ValidateToken(ctx context.Context, req *types.TokenRequest) error {
	token, err := s.tokens.Lookup(ctx, req.Token, entity.TokenPurposeReset)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}
	return nil
}

func (s *userAuthService) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error {
	// Hash before claiming so a rejected password does not burn the code.
	hashedPassword, err := hashPassword(s.cfg.Password, req.Password)
	if err != nil {
		return err
	}

	token, err := s.tokens.Claim(ctx, req.Token, entity.TokenPurposeReset)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	user.PasswordHash = hashedPassword
	user.UpdatedAt = time.Now()
	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	logrus.WithField("user_id", user.ID).Info("password reset")
	return nil
}

func (s *userAuthService) CurrentUser(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userAuthService) UpdateProfile(ctx context.Context, userID uint64, req *types.UpdateProfileRequest) (*entity.User, error) {
	email := NormalizeEmail(req.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != userID {
		return nil, ErrEmailTaken
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = req.Name
	user.Email = email
	user.UpdatedAt = time.Now()
	if err = s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

func (s *userAuthService) ChangePassword(ctx context.Context, userID uint64, req *types.ChangePasswordRequest) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}

	if !passwordMatches(user.PasswordHash, req.CurrentPassword) {
		return ErrPasswordMismatch
	}

	hashedPassword, err := hashPassword(s.cfg.Password, req.Password)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	user.UpdatedAt = time.Now()
	return s.userRepo.Update(ctx, user)
}

func (s *userAuthService) CheckPassword(ctx context.Context, userID uint64, req *types.CheckPasswordRequest) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}

	if !passwordMatches(user.PasswordHash, req.Password) {
		return ErrPasswordMismatch
	}
	return nil
}

// VerifySession resolves a signed session into its user. Every failure,
// including a user that no longer exists, is ErrInvalidSession.
func (s *userAuthService) VerifySession(ctx context.Context, signed string) (*entity.User, error) {
	userID, err := s.sessions.Verify(signed)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidSession
	}
	return user, nil
}
