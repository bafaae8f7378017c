package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/testutil"
)

// identityOverride lets a test replace single IdentityStore operations
type identityOverride struct {
	*repository.UserRepository
	createProfile     func(ctx context.Context, q database.DBTX, profile *models.UserProfile) error
	skipVerifiedCheck bool
}

func (o *identityOverride) CreateProfile(ctx context.Context, q database.DBTX, profile *models.UserProfile) error {
	if o.createProfile != nil {
		return o.createProfile(ctx, q, profile)
	}
	return o.UserRepository.CreateProfile(ctx, q, profile)
}

func (o *identityOverride) FindVerifiedByEmailOrContact(ctx context.Context, q database.DBTX, email, countryCode, mobile string) (*models.User, error) {
	if o.skipVerifiedCheck {
		return nil, nil
	}
	return o.UserRepository.FindVerifiedByEmailOrContact(ctx, q, email, countryCode, mobile)
}

func joinRequest(email string) RegisterAndJoinRequest {
	return RegisterAndJoinRequest{
		Email:       email,
		CountryCode: "+44",
		Mobile:      "7700900123",
		Password:    "correct-horse",
		FamilyCode:  "FAM1",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Gender:      testutil.Ptr("female"),
	}
}

func TestRegisterAndJoin(t *testing.T) {
	f := newFixture(t)
	creator, admin := activeFamily(f)

	result, err := f.registration.RegisterAndJoin(f.ctx, joinRequest(" Ada@Example.com "), admin)
	require.NoError(t, err)

	user := result.User
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, models.RoleMember, user.Role)
	require.NotNil(t, user.CreatedBy)
	assert.Equal(t, admin, *user.CreatedBy)

	ok, err := f.hasher.Compare(user.PasswordHash, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)

	profile, err := f.users.FindProfile(f.ctx, f.db, user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Ada Lovelace", profile.FullName())
	require.NotNil(t, profile.FamilyCode)
	assert.Equal(t, "FAM1", *profile.FamilyCode)

	rows := f.rows(user.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ApproveStatusApproved, rows[0].ApproveStatus)
	assert.Equal(t, result.Membership.ID, rows[0].ID)

	events := f.notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.NotificationMemberJoined, events[0].Type)
	assert.Equal(t, "User Ada Lovelace has successfully joined your family.", events[0].Message)
	assert.Equal(t, []int64{creator, admin}, events[0].RecipientIDs)
	assert.Equal(t, 0, f.inboxCount(user.ID))
}

func TestRegisterAndJoinCustomStatusAndRole(t *testing.T) {
	f := newFixture(t)
	_, admin := activeFamily(f)

	req := joinRequest("new@example.com")
	req.Status = testutil.Ptr(models.UserStatusInactive)
	req.Role = testutil.Ptr(models.RoleAdmin)

	result, err := f.registration.RegisterAndJoin(f.ctx, req, admin)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusInactive, result.User.Status)
	assert.Equal(t, models.RoleAdmin, result.User.Role)
}

func TestRegisterAndJoinRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, req *RegisterAndJoinRequest)
		want   error
	}{
		{
			name:   "inactive family",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) { req.FamilyCode = "OLD1" },
			want:   ErrInvalidFamilyCode,
		},
		{
			name: "verified email",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) {
				testutil.InsertUser(f.t, f.db, "taken@example.com", models.UserStatusActive, models.RoleMember)
				req.Email = "taken@example.com"
			},
			want: ErrUserExists,
		},
		{
			name: "verified mobile",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) {
				id := testutil.InsertUser(f.t, f.db, "phone@example.com", models.UserStatusActive, models.RoleMember)
				_, err := f.db.ExecContext(f.ctx, "UPDATE users SET country_code = ?, mobile = ? WHERE id = ?", req.CountryCode, req.Mobile, id)
				require.NoError(f.t, err)
			},
			want: ErrUserExists,
		},
		{
			name:   "bad email",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) { req.Email = "nope" },
			want:   ErrValidationConflict,
		},
		{
			name:   "short password",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) { req.Password = "short" },
			want:   ErrValidationConflict,
		},
		{
			name:   "bad role",
			mutate: func(f *fixture, req *RegisterAndJoinRequest) { req.Role = testutil.Ptr(models.Role(7)) },
			want:   ErrValidationConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, admin := activeFamily(f)
			f.family("OLD1", models.FamilyStatusInactive, nil)

			req := joinRequest("fresh@example.com")
			tt.mutate(f, &req)
			usersBefore := f.count("users")

			_, err := f.registration.RegisterAndJoin(f.ctx, req, admin)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidationConflict)
			assert.Equal(t, usersBefore, f.count("users"))
			assert.Empty(t, f.notifier.recorded())
		})
	}
}

func TestRegisterAndJoinRollsBackOnProfileFailure(t *testing.T) {
	f := newFixture(t)
	_, admin := activeFamily(f)
	identity := &identityOverride{
		UserRepository: f.users,
		createProfile: func(context.Context, database.DBTX, *models.UserProfile) error {
			return errBoom
		},
	}
	svc := NewRegistrationService(f.uow, identity, f.families, f.members, f.notifier, f.hasher, f.logger)

	users, profiles, members := f.count("users"), f.count("user_profiles"), f.count("family_members")

	_, err := svc.RegisterAndJoin(f.ctx, joinRequest("rollback@example.com"), admin)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, users, f.count("users"))
	assert.Equal(t, profiles, f.count("user_profiles"))
	assert.Equal(t, members, f.count("family_members"))
	found, err := f.users.FindByEmail(f.ctx, f.db, "rollback@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Empty(t, f.notifier.recorded())
}

func TestRegisterAndJoinTranslatesUniqueViolation(t *testing.T) {
	f := newFixture(t)
	_, admin := activeFamily(f)
	testutil.InsertUser(t, f.db, "race@example.com", models.UserStatusActive, models.RoleMember)
	identity := &identityOverride{UserRepository: f.users, skipVerifiedCheck: true}
	svc := NewRegistrationService(f.uow, identity, f.families, f.members, f.notifier, f.hasher, f.logger)

	users := f.count("users")
	_, err := svc.RegisterAndJoin(f.ctx, joinRequest("race@example.com"), admin)
	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, users, f.count("users"))
}

func TestRegisterAndJoinNotifierFailureKeepsCommit(t *testing.T) {
	f := newFixture(t)
	_, admin := activeFamily(f)
	f.notifier.fail = errBoom

	result, err := f.registration.RegisterAndJoin(f.ctx, joinRequest("kept@example.com"), admin)
	require.NoError(t, err)
	assert.Len(t, f.rows(result.User.ID), 1)
}

func TestRegisterAndJoinAuthorizesCreator(t *testing.T) {
	tests := []struct {
		name    string
		creator func(f *fixture, creator, admin int64) int64
		role    *models.Role
		want    error
	}{
		{
			name:    "family creator grants member",
			creator: func(f *fixture, creator, admin int64) int64 { return creator },
		},
		{
			name:    "family admin grants own role",
			creator: func(f *fixture, creator, admin int64) int64 { return admin },
			role:    testutil.Ptr(models.RoleAdmin),
		},
		{
			name: "outsider",
			creator: func(f *fixture, creator, admin int64) int64 {
				return f.user("outsider@example.com", models.RoleMember)
			},
			want: ErrRegisterDenied,
		},
		{
			name: "admin of another family",
			creator: func(f *fixture, creator, admin int64) int64 {
				other := f.user("other-admin@example.com", models.RoleAdmin)
				f.family("FAM2", models.FamilyStatusActive, nil)
				f.member(other, "FAM2", models.ApproveStatusApproved)
				return other
			},
			want: ErrRegisterDenied,
		},
		{
			name: "pending admin",
			creator: func(f *fixture, creator, admin int64) int64 {
				pending := f.user("pending-admin@example.com", models.RoleAdmin)
				f.member(pending, "FAM1", models.ApproveStatusPending)
				return pending
			},
			want: ErrRegisterDenied,
		},
		{
			name:    "admin grants superadmin",
			creator: func(f *fixture, creator, admin int64) int64 { return admin },
			role:    testutil.Ptr(models.RoleSuperAdmin),
			want:    ErrRoleDenied,
		},
		{
			name:    "creator grants admin",
			creator: func(f *fixture, creator, admin int64) int64 { return creator },
			role:    testutil.Ptr(models.RoleAdmin),
			want:    ErrRoleDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			creator, admin := activeFamily(f)
			creatorID := tt.creator(f, creator, admin)

			req := joinRequest("registered@example.com")
			req.Role = tt.role
			users, members := f.count("users"), f.count("family_members")

			result, err := f.registration.RegisterAndJoin(f.ctx, req, creatorID)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Len(t, f.rows(result.User.ID), 1)
				return
			}
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrPermissionDenied)
			assert.Equal(t, users, f.count("users"))
			assert.Equal(t, members, f.count("family_members"))
			assert.Empty(t, f.notifier.recorded())
		})
	}
}
