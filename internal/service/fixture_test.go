package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/security"
	"kinship/internal/testutil"
)

// recordingNotifier records every Notify call and forwards to the real fanout
// unless fail is set
type recordingNotifier struct {
	next *NotificationService

	mu     sync.Mutex
	events []models.NotificationEvent
	fail   error
}

func (n *recordingNotifier) ResolveAdmins(ctx context.Context, familyCode string) ([]int64, error) {
	return n.next.ResolveAdmins(ctx, familyCode)
}

func (n *recordingNotifier) Notify(ctx context.Context, event models.NotificationEvent, triggeredBy *int64) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	fail := n.fail
	n.mu.Unlock()
	if fail != nil {
		return fail
	}
	return n.next.Notify(ctx, event, triggeredBy)
}

func (n *recordingNotifier) recorded() []models.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.NotificationEvent(nil), n.events...)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *database.DB
	uow      *database.UnitOfWork
	logger   *zap.Logger
	users    *repository.UserRepository
	families *repository.FamilyRepository
	members  *repository.MemberRepository
	inbox    *repository.NotificationRepository
	notifier *recordingNotifier
	hasher   *security.PasswordHasher

	notifications *NotificationService
	membership    *MembershipService
	registration  *RegistrationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zaptest.NewLogger(t)
	uow := database.NewUnitOfWork(db, logger)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		uow:      uow,
		logger:   logger,
		users:    repository.NewUserRepository(),
		families: repository.NewFamilyRepository(),
		members:  repository.NewMemberRepository(),
		inbox:    repository.NewNotificationRepository(),
		hasher:   security.NewPasswordHasher(4),
	}
	f.notifications = NewNotificationService(uow, f.inbox, f.users, nil, nil, logger)
	f.notifier = &recordingNotifier{next: f.notifications}
	f.membership = NewMembershipService(uow, f.users, f.families, f.members, f.notifier,
		MediaURLs{BaseURL: "https://kin.example", ProfilePath: "uploads/profile"}, logger)
	f.registration = NewRegistrationService(uow, f.users, f.families, f.members, f.notifier, f.hasher, logger)
	return f
}

func (f *fixture) user(email string, role models.Role) int64 {
	return testutil.InsertUser(f.t, f.db, email, models.UserStatusActive, role)
}

func (f *fixture) family(code string, status models.FamilyStatus, createdBy *int64) {
	testutil.InsertFamily(f.t, f.db, code, status, createdBy)
}

func (f *fixture) member(memberID int64, code string, status models.ApproveStatus) int64 {
	return testutil.InsertMember(f.t, f.db, memberID, code, status)
}

func (f *fixture) rows(memberID int64) []models.FamilyMember {
	f.t.Helper()
	all, err := f.members.ListAll(f.ctx, f.db)
	if err != nil {
		f.t.Fatalf("list members: %v", err)
	}
	var out []models.FamilyMember
	for _, m := range all {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) inboxCount(userID int64) int {
	f.t.Helper()
	n, err := f.inbox.CountForUser(f.ctx, f.db, userID)
	if err != nil {
		f.t.Fatalf("count notifications: %v", err)
	}
	return n
}

func (f *fixture) count(table string) int {
	f.t.Helper()
	var n int
	if err := f.db.QueryRowContext(f.ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		f.t.Fatalf("count %s: %v", table, err)
	}
	return n
}

var errBoom = errors.New("boom")
