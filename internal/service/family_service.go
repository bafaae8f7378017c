package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kinship/internal/credentials"
	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/validation"
)

const (
	minSearchLength    = 4
	searchLimit        = 20
	familyCodeAttempts = 5
)

var errFamilyCodeTaken = errors.New("family code taken")

// FamilyInput carries the editable fields of a family
type FamilyInput struct {
	Name   string               `json:"name"`
	Photo  *string              `json:"photo"`
	Status *models.FamilyStatus `json:"status"`
}

func (in *FamilyInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateName(in.Name); err != nil {
		return invalid(err)
	}
	if in.Status != nil && *in.Status != models.FamilyStatusActive && *in.Status != models.FamilyStatusInactive {
		return conflict("status: invalid status")
	}
	return nil
}

// FamilyService manages the family registry
type FamilyService struct {
	uow      *database.UnitOfWork
	families *repository.FamilyRepository
	members  MembershipStore
	users    IdentityStore
	logger   *zap.Logger
	newCode  func() (string, error)
}

// NewFamilyService creates a new family service
func NewFamilyService(uow *database.UnitOfWork, families *repository.FamilyRepository, members MembershipStore, users IdentityStore, logger *zap.Logger) *FamilyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{
		uow:      uow,
		families: families,
		members:  members,
		users:    users,
		logger:   logger,
		newCode:  credentials.GenerateFamilyCode,
	}
}

// CreateFamily registers a family under a freshly generated code. The creator
// becomes an approved member unless they already hold a membership row.
func (s *FamilyService) CreateFamily(ctx context.Context, creatorID int64, in FamilyInput) (*models.Family, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var family *models.Family
	var err error
	for attempt := 0; attempt < familyCodeAttempts; attempt++ {
		err = s.uow.Do(ctx, func(tx *database.Tx) error {
			var txErr error
			family, txErr = s.createFamily(ctx, tx, creatorID, in)
			return txErr
		})
		if !errors.Is(err, errFamilyCodeTaken) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, errFamilyCodeTaken) {
			return nil, fmt.Errorf("failed to generate a unique family code: %w", err)
		}
		return nil, err
	}

	s.logger.Info("family created",
		zap.Int64("family_id", family.ID),
		zap.String("family_code", family.FamilyCode),
		zap.Int64("creator_id", creatorID),
	)
	return family, nil
}

func (s *FamilyService) createFamily(ctx context.Context, tx *database.Tx, creatorID int64, in FamilyInput) (*models.Family, error) {
	code, err := s.newCode()
	if err != nil {
		return nil, err
	}

	family := &models.Family{
		FamilyCode: code,
		Name:       in.Name,
		Photo:      in.Photo,
		Status:     models.FamilyStatusActive,
		CreatedBy:  &creatorID,
	}
	if in.Status != nil {
		family.Status = *in.Status
	}
	if err := s.families.Create(ctx, tx, family); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errFamilyCodeTaken
		}
		return nil, err
	}

	existing, err := s.members.FindByMember(ctx, tx, creatorID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := s.members.Create(ctx, tx, &models.FamilyMember{
			MemberID:      creatorID,
			FamilyCode:    code,
			CreatorID:     &creatorID,
			ApproveStatus: models.ApproveStatusApproved,
		}); err != nil {
			return nil, err
		}
	}
	return family, nil
}

// GetByCode returns the family with code, active or not
func (s *FamilyService) GetByCode(ctx context.Context, code string) (*models.Family, error) {
	family, err := s.families.FindByCode(ctx, s.uow.DB(), code)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// ListAll returns every family, newest first
func (s *FamilyService) ListAll(ctx context.Context) ([]models.Family, error) {
	families, err := s.families.ListAll(ctx, s.uow.DB())
	if err != nil {
		return nil, err
	}
	if families == nil {
		families = []models.Family{}
	}
	return families, nil
}

// Search matches active families by name or code. Short queries match nothing.
func (s *FamilyService) Search(ctx context.Context, query string) ([]models.Family, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchLength {
		return []models.Family{}, nil
	}
	families, err := s.families.Search(ctx, s.uow.DB(), query, searchLimit)
	if err != nil {
		return nil, err
	}
	if families == nil {
		families = []models.Family{}
	}
	return families, nil
}

// UpdateFamily edits a family as actorID
func (s *FamilyService) UpdateFamily(ctx context.Context, actorID, familyID int64, in FamilyInput) (*models.Family, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var family *models.Family
	err := s.uow.Do(ctx, func(tx *database.Tx) error {
		var err error
		family, err = s.authorizedFamily(ctx, tx, actorID, familyID)
		if err != nil {
			return err
		}
		family.Name = in.Name
		if in.Photo != nil {
			family.Photo = in.Photo
		}
		if in.Status != nil {
			family.Status = *in.Status
		}
		return s.families.Update(ctx, tx, family)
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// DeleteFamily removes a family and its membership rows as actorID
func (s *FamilyService) DeleteFamily(ctx context.Context, actorID, familyID int64) error {
	return s.uow.Do(ctx, func(tx *database.Tx) error {
		family, err := s.authorizedFamily(ctx, tx, actorID, familyID)
		if err != nil {
			return err
		}
		removed, err := s.members.DeleteByFamily(ctx, tx, family.FamilyCode)
		if err != nil {
			return err
		}
		if err := s.families.Delete(ctx, tx, family); err != nil {
			return err
		}
		s.logger.Info("family deleted",
			zap.Int64("family_id", family.ID),
			zap.String("family_code", family.FamilyCode),
			zap.Int64("memberships_removed", removed),
			zap.Int64("actor_id", actorID),
		)
		return nil
	})
}

func (s *FamilyService) authorizedFamily(ctx context.Context, q database.DBTX, actorID, familyID int64) (*models.Family, error) {
	family, err := s.families.FindByID(ctx, q, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}

	actor, err := s.users.FindUserByID(ctx, q, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, ErrUserNotFound
	}

	err = Authorize(Actor{UserID: actor.ID, Role: actor.Role}, ActionManageFamily, Resource{
		FamilyCode: family.FamilyCode,
		CreatorID:  family.CreatedBy,
	})
	if err != nil {
		s.logger.Warn("family change denied", zap.Int64("actor_id", actorID), zap.Int64("family_id", familyID))
		return nil, err
	}
	return family, nil
}
