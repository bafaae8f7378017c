package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"kinship/internal/database"
	"kinship/internal/models"
)

// errJoinRace signals that a concurrent first join inserted the member's row
// while this transaction was deciding to insert it
var errJoinRace = errors.New("concurrent membership insert")

// MembershipService owns writes to membership rows and drives the
// pending -> approved state machine. Rejection and removal delete the row.
type MembershipService struct {
	uow      *database.UnitOfWork
	users    IdentityStore
	families FamilyRegistry
	members  MembershipStore
	notifier Notifier
	media    MediaURLs
	logger   *zap.Logger
	now      func() time.Time
}

// NewMembershipService creates a new membership service
func NewMembershipService(uow *database.UnitOfWork, users IdentityStore, families FamilyRegistry, members MembershipStore, notifier Notifier, media MediaURLs, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{
		uow:      uow,
		users:    users,
		families: families,
		members:  members,
		notifier: notifier,
		media:    media,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestJoin files a pending request for memberID to join familyCode. A user
// has a single membership slot: an existing row is moved to the new family and
// reset to pending. The bool result reports whether an existing row was reused.
func (s *MembershipService) RequestJoin(ctx context.Context, memberID int64, familyCode string, creatorID *int64) (*models.FamilyMember, bool, error) {
	var (
		member  *models.FamilyMember
		updated bool
		err     error
	)
	// One retry covers the losing side of two racing first joins: the second
	// attempt sees the winner's row and updates it.
	for attempt := 0; attempt < 2; attempt++ {
		err = s.uow.Do(ctx, func(tx *database.Tx) error {
			var txErr error
			member, updated, txErr = s.requestJoin(ctx, tx, memberID, familyCode, creatorID)
			return txErr
		})
		if !errors.Is(err, errJoinRace) {
			break
		}
	}
	if err != nil {
		return nil, false, err
	}
	return member, updated, nil
}

// RequestJoinAs files the request for memberID on behalf of actorID. Filing
// for someone else requires the family creator or one of its admins, and never
// moves a row the member holds in another family.
func (s *MembershipService) RequestJoinAs(ctx context.Context, actorID, memberID int64, familyCode string) (*models.FamilyMember, bool, error) {
	if actorID != memberID {
		if err := s.authorize(ctx, actorID, ActionRequestForMember, familyCode, memberID); err != nil {
			return nil, false, err
		}
	}
	return s.RequestJoin(ctx, memberID, familyCode, &actorID)
}

func (s *MembershipService) requestJoin(ctx context.Context, tx *database.Tx, memberID int64, familyCode string, creatorID *int64) (*models.FamilyMember, bool, error) {
	family, err := s.families.FindActiveByCode(ctx, tx, familyCode)
	if err != nil {
		return nil, false, err
	}
	if family == nil {
		return nil, false, ErrInvalidFamilyCode
	}

	user, err := s.users.FindUserByID(ctx, tx, memberID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrUserNotFound
	}

	existing, err := s.members.FindByMember(ctx, tx, memberID)
	if err != nil {
		return nil, false, err
	}

	title := "New Family Join Request"
	verb := "has requested to join your family."
	member := existing
	if existing != nil {
		existing.FamilyCode = familyCode
		existing.ApproveStatus = models.ApproveStatusPending
		if creatorID != nil {
			existing.CreatorID = creatorID
		}
		if err := s.members.Update(ctx, tx, existing); err != nil {
			return nil, false, err
		}
		title = "Family Join Request Updated"
		verb = "has updated their request to join your family."
	} else {
		member = &models.FamilyMember{
			MemberID:      memberID,
			FamilyCode:    familyCode,
			CreatorID:     creatorID,
			ApproveStatus: models.ApproveStatusPending,
		}
		if err := s.members.Create(ctx, tx, member); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, false, errJoinRace
			}
			return nil, false, err
		}
	}

	name, err := s.displayName(ctx, tx, memberID)
	if err != nil {
		return nil, false, err
	}
	s.notifyAdminsOnCommit(tx, familyCode, 0, creatorID, models.NotificationEvent{
		Type:        models.NotificationJoinRequest,
		Title:       title,
		Message:     fmt.Sprintf("User %s %s", name, verb),
		FamilyCode:  familyCode,
		ReferenceID: memberID,
	})

	return member, existing != nil, nil
}

// Approve moves a pending request for exactly (memberID, familyCode) to approved
// and notifies the member
func (s *MembershipService) Approve(ctx context.Context, memberID int64, familyCode string) (*models.FamilyMember, error) {
	var member *models.FamilyMember
	err := s.uow.Do(ctx, func(tx *database.Tx) error {
		var err error
		member, err = s.members.FindPending(ctx, tx, memberID, familyCode)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrPendingRequestNotFound
		}

		member.ApproveStatus = models.ApproveStatusApproved
		if err := s.members.Update(ctx, tx, member); err != nil {
			return err
		}

		s.notifyOnCommit(tx, member.CreatorID, models.NotificationEvent{
			Type:         models.NotificationMemberApproved,
			Title:        "Welcome to the Family!",
			Message:      fmt.Sprintf("Your request to join the family (%s) has been approved. Welcome!", familyCode),
			FamilyCode:   familyCode,
			ReferenceID:  memberID,
			RecipientIDs: []int64{memberID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ApproveAs authorizes actorID before approving
func (s *MembershipService) ApproveAs(ctx context.Context, actorID, memberID int64, familyCode string) (*models.FamilyMember, error) {
	if err := s.authorize(ctx, actorID, ActionApproveMember, familyCode, memberID); err != nil {
		return nil, err
	}
	return s.Approve(ctx, memberID, familyCode)
}

// Reject deletes the membership row of memberID in familyCode. The rejector
// must be an admin with an approved membership in that family. It returns the
// display name of the rejected member.
func (s *MembershipService) Reject(ctx context.Context, memberID, rejectorID int64, familyCode string) (string, error) {
	var name string
	err := s.uow.Do(ctx, func(tx *database.Tx) error {
		member, err := s.members.FindByMemberAndFamily(ctx, tx, memberID, familyCode)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		actor, err := s.loadActor(ctx, tx, rejectorID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionRejectMember, Resource{FamilyCode: familyCode, SubjectID: memberID}); err != nil {
			s.logDenied(actor, ActionRejectMember, familyCode, memberID)
			return err
		}

		if err := s.members.Delete(ctx, tx, member.ID); err != nil {
			return err
		}

		profile, err := s.users.FindProfile(ctx, tx, memberID)
		if err != nil {
			return err
		}
		name = "User"
		if profile != nil {
			if full := profile.FullName(); full != "" {
				name = full
			}
		}

		s.notifyOnCommit(tx, nil, models.NotificationEvent{
			Type:         models.NotificationJoinRejected,
			Title:        "Family Join Request Rejected",
			Message:      fmt.Sprintf("Your request to join the family (%s) has been rejected.", familyCode),
			FamilyCode:   familyCode,
			ReferenceID:  memberID,
			RecipientIDs: []int64{memberID},
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Remove deletes an existing membership row and notifies the remaining admins
func (s *MembershipService) Remove(ctx context.Context, memberID int64, familyCode string) error {
	return s.uow.Do(ctx, func(tx *database.Tx) error {
		member, err := s.members.FindByMemberAndFamily(ctx, tx, memberID, familyCode)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		if err := s.members.Delete(ctx, tx, member.ID); err != nil {
			return err
		}

		name, err := s.displayName(ctx, tx, memberID)
		if err != nil {
			return err
		}
		s.notifyAdminsOnCommit(tx, familyCode, memberID, nil, models.NotificationEvent{
			Type:        models.NotificationMemberRemoved,
			Title:       "Family Member Removed",
			Message:     fmt.Sprintf("User %s has been removed from the family.", name),
			FamilyCode:  familyCode,
			ReferenceID: memberID,
		})
		return nil
	})
}

// RemoveAs authorizes actorID before removing
func (s *MembershipService) RemoveAs(ctx context.Context, actorID, memberID int64, familyCode string) error {
	if err := s.authorize(ctx, actorID, ActionRemoveMember, familyCode, memberID); err != nil {
		return err
	}
	return s.Remove(ctx, memberID, familyCode)
}

// ListApproved returns the approved members of a family, newest first
func (s *MembershipService) ListApproved(ctx context.Context, viewerID int64, familyCode string) ([]models.MemberListing, error) {
	if err := s.authorize(ctx, viewerID, ActionViewFamily, familyCode, 0); err != nil {
		return nil, err
	}
	listings, err := s.members.ListByFamily(ctx, s.uow.DB(), familyCode, models.ApproveStatusApproved)
	if err != nil {
		return nil, err
	}
	return s.decorate(listings), nil
}

// ListPendingForRequester returns the pending requests of the caller's own family
func (s *MembershipService) ListPendingForRequester(ctx context.Context, userID int64) ([]models.MemberListing, error) {
	own, err := s.members.FindByMember(ctx, s.uow.DB(), userID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, ErrMembershipNotFound
	}

	listings, err := s.members.ListByFamily(ctx, s.uow.DB(), own.FamilyCode, models.ApproveStatusPending)
	if err != nil {
		return nil, err
	}
	return s.decorate(listings), nil
}

// GetMember returns a single member's projection if viewerID may see it.
// Viewers who could not see the member get the same denial whether or not
// the row exists.
func (s *MembershipService) GetMember(ctx context.Context, viewerID, memberID int64) (*models.MemberListing, error) {
	q := s.uow.DB()
	actor, err := s.loadActor(ctx, q, viewerID)
	if err != nil {
		return nil, err
	}

	listing, err := s.members.FindListing(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		if viewerID == memberID || actor.Role == models.RoleSuperAdmin {
			return nil, ErrMemberNotFound
		}
		s.logDenied(actor, ActionViewMember, "", memberID)
		return nil, ErrViewDenied
	}

	if err := Authorize(actor, ActionViewMember, Resource{FamilyCode: listing.FamilyCode, SubjectID: memberID}); err != nil {
		s.logDenied(actor, ActionViewMember, listing.FamilyCode, memberID)
		return nil, err
	}

	decorated := s.decorate([]models.MemberListing{*listing})
	return &decorated[0], nil
}

// Stats aggregates approved members that have a profile. The average age uses
// calendar years only and divides by every profiled member, dob or not.
func (s *MembershipService) Stats(ctx context.Context, viewerID int64, familyCode string) (models.FamilyStats, error) {
	if err := s.authorize(ctx, viewerID, ActionViewFamily, familyCode, 0); err != nil {
		return models.FamilyStats{}, err
	}
	demographics, err := s.members.ListDemographics(ctx, s.uow.DB(), familyCode)
	if err != nil {
		return models.FamilyStats{}, err
	}
	return computeStats(demographics, s.now().Year()), nil
}

func computeStats(demographics []models.Demographic, currentYear int) models.FamilyStats {
	var stats models.FamilyStats
	totalAge := 0
	for _, d := range demographics {
		stats.TotalMembers++
		if d.Gender != nil {
			switch strings.ToLower(*d.Gender) {
			case "male":
				stats.Males++
			case "female":
				stats.Females++
			}
		}
		if d.DOB != nil {
			totalAge += currentYear - d.DOB.Year()
		}
	}
	if stats.TotalMembers > 0 {
		stats.AverageAge = math.Round(float64(totalAge)/float64(stats.TotalMembers)*10) / 10
	}
	return stats
}

func (s *MembershipService) decorate(listings []models.MemberListing) []models.MemberListing {
	for i := range listings {
		l := &listings[i]
		l.FullName = nil
		l.ProfileImage = nil
		if l.Profile == nil {
			continue
		}
		full := strings.TrimSpace(l.Profile.FirstName + " " + l.Profile.LastName)
		l.Profile.FullName = full
		l.FullName = &full
		if l.Profile.ImageFile != nil && *l.Profile.ImageFile != "" {
			url := s.media.ProfileImage(*l.Profile.ImageFile)
			l.Profile.ProfileImage = &url
			l.ProfileImage = &url
		}
	}
	return listings
}

func (s *MembershipService) authorize(ctx context.Context, actorID int64, action Action, familyCode string, subjectID int64) error {
	q := s.uow.DB()
	actor, err := s.loadActor(ctx, q, actorID)
	if err != nil {
		return err
	}
	res := Resource{FamilyCode: familyCode, SubjectID: subjectID}
	if family, err := s.families.FindActiveByCode(ctx, q, familyCode); err != nil {
		return err
	} else if family != nil {
		res.CreatorID = family.CreatedBy
	}
	if action == ActionRequestForMember {
		if res.SubjectMembership, err = s.members.FindByMember(ctx, q, subjectID); err != nil {
			return err
		}
	}
	if err := Authorize(actor, action, res); err != nil {
		logDenied(s.logger, actor, action, familyCode, subjectID)
		return err
	}
	return nil
}

func (s *MembershipService) loadActor(ctx context.Context, q database.DBTX, userID int64) (Actor, error) {
	actor := Actor{UserID: userID}
	user, err := s.users.FindUserByID(ctx, q, userID)
	if err != nil {
		return actor, err
	}
	if user != nil {
		actor.Role = user.Role
	}
	actor.Membership, err = s.members.FindByMember(ctx, q, userID)
	return actor, err
}

func (s *MembershipService) logDenied(actor Actor, action Action, familyCode string, subjectID int64) {
	logDenied(s.logger, actor, action, familyCode, subjectID)
}

func logDenied(logger *zap.Logger, actor Actor, action Action, familyCode string, subjectID int64) {
	logger.Warn("permission denied",
		zap.Int64("actor_id", actor.UserID),
		zap.Int("actor_role", int(actor.Role)),
		zap.String("action", action.String()),
		zap.String("family_code", familyCode),
		zap.Int64("subject_id", subjectID),
	)
}

func (s *MembershipService) displayName(ctx context.Context, q database.DBTX, userID int64) (string, error) {
	profile, err := s.users.FindProfile(ctx, q, userID)
	if err != nil || profile == nil {
		return "", err
	}
	return profile.FullName(), nil
}

// notifyOnCommit delivers event to its fixed recipients after the transaction commits
func (s *MembershipService) notifyOnCommit(tx *database.Tx, triggeredBy *int64, event models.NotificationEvent) {
	tx.OnCommit(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, event, triggeredBy)
	})
}

// notifyAdminsOnCommit resolves the family admins after commit, drops exclude,
// and delivers event to the rest
func (s *MembershipService) notifyAdminsOnCommit(tx *database.Tx, familyCode string, exclude int64, triggeredBy *int64, event models.NotificationEvent) {
	tx.OnCommit(func(ctx context.Context) error {
		return notifyAdmins(ctx, s.notifier, familyCode, exclude, triggeredBy, event)
	})
}

func notifyAdmins(ctx context.Context, notifier Notifier, familyCode string, exclude int64, triggeredBy *int64, event models.NotificationEvent) error {
	admins, err := notifier.ResolveAdmins(ctx, familyCode)
	if err != nil {
		return fmt.Errorf("failed to resolve family admins: %w", err)
	}
	recipients := make([]int64, 0, len(admins))
	for _, id := range admins {
		if id != exclude {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	event.RecipientIDs = recipients
	return notifier.Notify(ctx, event, triggeredBy)
}
