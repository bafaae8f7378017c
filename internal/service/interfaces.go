package service

import (
	"context"

	"kinship/internal/database"
	"kinship/internal/models"
)

// IdentityStore holds user accounts and profiles
type IdentityStore interface {
	FindVerifiedByEmailOrContact(ctx context.Context, q database.DBTX, email, countryCode, mobile string) (*models.User, error)
	FindUserByID(ctx context.Context, q database.DBTX, id int64) (*models.User, error)
	CreateUser(ctx context.Context, q database.DBTX, user *models.User) error
	CreateProfile(ctx context.Context, q database.DBTX, profile *models.UserProfile) error
	FindProfile(ctx context.Context, q database.DBTX, userID int64) (*models.UserProfile, error)
}

// FamilyRegistry validates family codes
type FamilyRegistry interface {
	FindActiveByCode(ctx context.Context, q database.DBTX, code string) (*models.Family, error)
}

// MembershipStore persists membership rows
type MembershipStore interface {
	FindByMember(ctx context.Context, q database.DBTX, memberID int64) (*models.FamilyMember, error)
	FindByMemberAndFamily(ctx context.Context, q database.DBTX, memberID int64, familyCode string) (*models.FamilyMember, error)
	FindPending(ctx context.Context, q database.DBTX, memberID int64, familyCode string) (*models.FamilyMember, error)
	Create(ctx context.Context, q database.DBTX, member *models.FamilyMember) error
	Update(ctx context.Context, q database.DBTX, member *models.FamilyMember) error
	Delete(ctx context.Context, q database.DBTX, id int64) error
	DeleteByFamily(ctx context.Context, q database.DBTX, familyCode string) (int64, error)
	ListByFamily(ctx context.Context, q database.DBTX, familyCode string, status models.ApproveStatus) ([]models.MemberListing, error)
	FindListing(ctx context.Context, q database.DBTX, memberID int64) (*models.MemberListing, error)
	ListDemographics(ctx context.Context, q database.DBTX, familyCode string) ([]models.Demographic, error)
}

// Notifier fans notifications out to users. Delivery problems are its own
// concern; callers only see persistence failures.
type Notifier interface {
	ResolveAdmins(ctx context.Context, familyCode string) ([]int64, error)
	Notify(ctx context.Context, event models.NotificationEvent, triggeredBy *int64) error
}

// Hasher hashes and checks passwords
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// TokenIssuer issues access tokens
type TokenIssuer interface {
	Issue(userID int64, email string, role int) (string, error)
}

// Mailer delivers transactional email
type Mailer interface {
	IsEnabled() bool
	SendOTPEmail(ctx context.Context, toEmail, otp string) error
	SendNotificationEmail(ctx context.Context, toEmail, title, message string) error
}

// Publisher pushes realtime messages to subscribers of a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
