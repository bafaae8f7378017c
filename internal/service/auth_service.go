package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"go.uber.org/zap"

	"kinship/internal/credentials"
	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/validation"
)

const otpResendCooldown = time.Minute

// RegisterRequest is a self-service sign-up
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CountryCode string `json:"countryCode"`
	Mobile      string `json:"mobile"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

func (r *RegisterRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.CountryCode = strings.TrimSpace(r.CountryCode)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *RegisterRequest) validate() error {
	if err := validation.ValidateEmail(r.Email); err != nil {
		return invalid(err)
	}
	if err := validation.ValidatePassword(r.Password); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateName(r.FirstName); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateContact(r.CountryCode, r.Mobile); err != nil {
		return invalid(err)
	}
	return nil
}

// AuthResult is returned by a successful verification or login
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService handles sign-up, OTP verification and login
type AuthService struct {
	uow    *database.UnitOfWork
	users  *repository.UserRepository
	hasher Hasher
	tokens TokenIssuer
	mailer Mailer
	otpTTL time.Duration
	logger *zap.Logger
	now    func() time.Time
	newOTP func() (string, error)
}

// NewAuthService creates a new auth service
func NewAuthService(uow *database.UnitOfWork, users *repository.UserRepository, hasher Hasher, tokens TokenIssuer, mailer Mailer, otpTTL time.Duration, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &AuthService{
		uow:    uow,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		mailer: mailer,
		otpTTL: otpTTL,
		logger: logger,
		now:    time.Now,
		newOTP: credentials.GenerateOTP,
	}
}

// Register creates an unverified account, or refreshes an earlier unverified
// one for the same email, and emails a new OTP
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	otp, err := s.newOTP()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.otpTTL)

	var user *models.User
	err = s.uow.Do(ctx, func(tx *database.Tx) error {
		existing, err := s.users.FindByEmail(ctx, tx, req.Email)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsVerified() {
			return ErrEmailRegistered
		}

		clash, err := s.users.FindVerifiedByEmailOrContact(ctx, tx, req.Email, req.CountryCode, req.Mobile)
		if err != nil {
			return err
		}
		if clash != nil {
			return ErrUserExists
		}

		if existing != nil && existing.Status == models.UserStatusUnverified {
			user = existing
			user.CountryCode = req.CountryCode
			user.Mobile = req.Mobile
			user.PasswordHash = hash
			user.OTP = &otp
			user.OTPExpiresAt = &expiresAt
			if err := s.users.UpdateRegistration(ctx, tx, user); err != nil {
				return err
			}
			if err := s.upsertProfileNames(ctx, tx, user.ID, req.FirstName, req.LastName); err != nil {
				return err
			}
		} else {
			user = &models.User{
				Email:        req.Email,
				CountryCode:  req.CountryCode,
				Mobile:       req.Mobile,
				PasswordHash: hash,
				Status:       models.UserStatusUnverified,
				Role:         models.RoleMember,
				OTP:          &otp,
				OTPExpiresAt: &expiresAt,
			}
			if err := s.users.CreateUser(ctx, tx, user); err != nil {
				return err
			}
			if err := s.users.CreateProfile(ctx, tx, &models.UserProfile{
				UserID:    user.ID,
				FirstName: req.FirstName,
				LastName:  req.LastName,
			}); err != nil {
				return err
			}
		}

		tx.OnCommit(s.sendOTP(user.Email, otp))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *AuthService) upsertProfileNames(ctx context.Context, q database.DBTX, userID int64, first, last string) error {
	profile, err := s.users.FindProfile(ctx, q, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return s.users.CreateProfile(ctx, q, &models.UserProfile{UserID: userID, FirstName: first, LastName: last})
	}
	return s.users.UpdateProfileNames(ctx, q, userID, first, last)
}

func (s *AuthService) sendOTP(email, otp string) database.Hook {
	return func(ctx context.Context) error {
		if s.mailer == nil {
			return nil
		}
		return s.mailer.SendOTPEmail(ctx, email, otp)
	}
}

// VerifyOTP activates the account holding email when otp matches and has not expired
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateOTP(otp); err != nil {
		return nil, invalid(err)
	}

	var user *models.User
	err := s.uow.Do(ctx, func(tx *database.Tx) error {
		var err error
		user, err = s.users.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.IsVerified() {
			return ErrAlreadyVerified
		}
		if user.OTP == nil || subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(otp)) != 1 {
			return ErrInvalidOTP
		}
		now := s.now()
		if user.OTPExpiresAt == nil || now.After(*user.OTPExpiresAt) {
			return ErrOTPExpired
		}

		if err := s.users.MarkVerified(ctx, tx, user.ID, now); err != nil {
			// another account verified the same mobile first
			if database.IsUniqueViolation(err) {
				return ErrUserExists
			}
			return err
		}
		user.Status = models.UserStatusActive
		user.OTP = nil
		user.OTPExpiresAt = nil
		user.VerifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email, int(user.Role))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user verified", zap.Int64("user_id", user.ID))
	return &AuthResult{Token: token, User: user}, nil
}

// ResendOTP issues a fresh OTP unless the previous one was sent less than a minute ago
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	return s.uow.Do(ctx, func(tx *database.Tx) error {
		user, err := s.users.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.IsVerified() {
			return ErrAlreadyVerified
		}

		now := s.now()
		if user.OTPExpiresAt != nil {
			sentAt := user.OTPExpiresAt.Add(-s.otpTTL)
			if now.Before(sentAt.Add(otpResendCooldown)) {
				return ErrOTPCooldown
			}
		}

		otp, err := s.newOTP()
		if err != nil {
			return err
		}
		if err := s.users.SetOTP(ctx, tx, user.ID, otp, now.Add(s.otpTTL)); err != nil {
			return err
		}
		tx.OnCommit(s.sendOTP(user.Email, otp))
		return nil
	})
}

// Login checks the password of a verified account and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	q := s.uow.DB()

	user, err := s.users.FindByEmail(ctx, q, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	switch user.Status {
	case models.UserStatusUnverified:
		return nil, ErrNotVerified
	case models.UserStatusInactive:
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email, int(user.Role))
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, q, user.ID, now); err != nil {
		s.logger.Warn("failed to record login", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return &AuthResult{Token: token, User: user}, nil
}

// User returns the account with id
func (s *AuthService) User(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, s.uow.DB(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
