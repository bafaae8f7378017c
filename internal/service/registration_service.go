package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/validation"
)

// RegisterAndJoinRequest carries a new account, its profile and the family to join
type RegisterAndJoinRequest struct {
	Email       string             `json:"email"`
	CountryCode string             `json:"countryCode"`
	Mobile      string             `json:"mobile"`
	Password    string             `json:"password"`
	Status      *models.UserStatus `json:"status"`
	Role        *models.Role       `json:"role"`
	FamilyCode  string             `json:"familyCode"`

	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Profile       *string    `json:"profile"`
	Gender        *string    `json:"gender"`
	DOB           *time.Time `json:"dob"`
	MaritalStatus *string    `json:"maritalStatus"`
	SpouseName    *string    `json:"spouseName"`
	FatherName    *string    `json:"fatherName"`
	MotherName    *string    `json:"motherName"`
	ContactNumber *string    `json:"contactNumber"`
	Address       *string    `json:"address"`
	Bio           *string    `json:"bio"`
}

func (r *RegisterAndJoinRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.CountryCode = strings.TrimSpace(r.CountryCode)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.FamilyCode = strings.TrimSpace(r.FamilyCode)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *RegisterAndJoinRequest) validate() error {
	if err := validation.ValidateEmail(r.Email); err != nil {
		return invalid(err)
	}
	if err := validation.ValidatePassword(r.Password); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateContact(r.CountryCode, r.Mobile); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateFamilyCode(r.FamilyCode); err != nil {
		return invalid(err)
	}
	if r.Status != nil && (*r.Status < models.UserStatusUnverified || *r.Status > models.UserStatusInactive) {
		return conflict("status: invalid status")
	}
	if r.Role != nil && (*r.Role < models.RoleMember || *r.Role > models.RoleSuperAdmin) {
		return conflict("role: invalid role")
	}
	return nil
}

// RegistrationResult is the outcome of a registration-and-join
type RegistrationResult struct {
	User       *models.User         `json:"user"`
	Profile    *models.UserProfile  `json:"profile"`
	Membership *models.FamilyMember `json:"membership"`
}

// RegistrationService creates an account, its profile and an approved
// membership as one unit of work
type RegistrationService struct {
	uow      *database.UnitOfWork
	users    IdentityStore
	families FamilyRegistry
	members  MembershipStore
	notifier Notifier
	hasher   Hasher
	logger   *zap.Logger
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(uow *database.UnitOfWork, users IdentityStore, families FamilyRegistry, members MembershipStore, notifier Notifier, hasher Hasher, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		uow:      uow,
		users:    users,
		families: families,
		members:  members,
		notifier: notifier,
		hasher:   hasher,
		logger:   logger,
	}
}

// RegisterAndJoin creates the user, profile and approved membership atomically.
// Any failure leaves none of them behind. Family admins are notified after commit.
func (s *RegistrationService) RegisterAndJoin(ctx context.Context, req RegisterAndJoinRequest, creatorID int64) (*RegistrationResult, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	var result *RegistrationResult
	err = s.uow.Do(ctx, func(tx *database.Tx) error {
		var txErr error
		result, txErr = s.registerAndJoin(ctx, tx, req, hash, creatorID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered into family",
		zap.Int64("user_id", result.User.ID),
		zap.String("family_code", req.FamilyCode),
		zap.Int64("creator_id", creatorID),
	)
	return result, nil
}

func (s *RegistrationService) registerAndJoin(ctx context.Context, tx *database.Tx, req RegisterAndJoinRequest, hash string, creatorID int64) (*RegistrationResult, error) {
	family, err := s.families.FindActiveByCode(ctx, tx, req.FamilyCode)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrInvalidFamilyCode
	}
	if err := s.authorizeCreator(ctx, tx, creatorID, family, req.Role); err != nil {
		return nil, err
	}

	existing, err := s.users.FindVerifiedByEmailOrContact(ctx, tx, req.Email, req.CountryCode, req.Mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	user := &models.User{
		Email:        req.Email,
		CountryCode:  req.CountryCode,
		Mobile:       req.Mobile,
		PasswordHash: hash,
		Status:       models.UserStatusActive,
		Role:         models.RoleMember,
		CreatedBy:    &creatorID,
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.users.CreateUser(ctx, tx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	profile := &models.UserProfile{
		UserID:        user.ID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ProfileImage:  req.Profile,
		Gender:        req.Gender,
		DOB:           req.DOB,
		MaritalStatus: req.MaritalStatus,
		SpouseName:    req.SpouseName,
		FatherName:    req.FatherName,
		MotherName:    req.MotherName,
		ContactNumber: req.ContactNumber,
		Address:       req.Address,
		Bio:           req.Bio,
		FamilyCode:    &req.FamilyCode,
	}
	if err := s.users.CreateProfile(ctx, tx, profile); err != nil {
		return nil, err
	}

	already, err := s.members.FindByMemberAndFamily(ctx, tx, user.ID, req.FamilyCode)
	if err != nil {
		return nil, err
	}
	if already != nil {
		return nil, ErrAlreadyRequested
	}

	membership := &models.FamilyMember{
		MemberID:      user.ID,
		FamilyCode:    req.FamilyCode,
		CreatorID:     &creatorID,
		ApproveStatus: models.ApproveStatusApproved,
	}
	if err := s.members.Create(ctx, tx, membership); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyRequested
		}
		return nil, err
	}

	userID := user.ID
	event := models.NotificationEvent{
		Type:        models.NotificationMemberJoined,
		Title:       "New Family Member Joined",
		Message:     fmt.Sprintf("User %s has successfully joined your family.", profile.FullName()),
		FamilyCode:  req.FamilyCode,
		ReferenceID: userID,
	}
	tx.OnCommit(func(ctx context.Context) error {
		return notifyAdmins(ctx, s.notifier, req.FamilyCode, userID, &userID, event)
	})

	return &RegistrationResult{User: user, Profile: profile, Membership: membership}, nil
}

// authorizeCreator requires the family creator or one of its admins, who may
// not hand out a role above their own
func (s *RegistrationService) authorizeCreator(ctx context.Context, q database.DBTX, creatorID int64, family *models.Family, role *models.Role) error {
	actor := Actor{UserID: creatorID}
	creator, err := s.users.FindUserByID(ctx, q, creatorID)
	if err != nil {
		return err
	}
	if creator != nil {
		actor.Role = creator.Role
	}
	if actor.Membership, err = s.members.FindByMember(ctx, q, creatorID); err != nil {
		return err
	}

	res := Resource{FamilyCode: family.FamilyCode, CreatorID: family.CreatedBy, GrantRole: models.RoleMember}
	if role != nil {
		res.GrantRole = *role
	}
	if err := Authorize(actor, ActionRegisterMember, res); err != nil {
		logDenied(s.logger, actor, ActionRegisterMember, family.FamilyCode, 0)
		return err
	}
	return nil
}
