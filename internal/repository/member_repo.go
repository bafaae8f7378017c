package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kinship/internal/database"
	"kinship/internal/models"
)

const memberColumns = "id, member_id, family_code, creator_id, approve_status, created_at, updated_at"

const listingSelect = `
	SELECT fm.id, fm.member_id, fm.family_code, fm.creator_id, fm.approve_status, fm.created_at, fm.updated_at,
		u.id, u.email, u.country_code, u.mobile, u.status, u.role,
		p.id, p.first_name, p.last_name, p.profile_image, p.gender, p.dob, p.marital_status,
		p.contact_number, p.address, p.bio
	FROM family_members fm
	JOIN users u ON u.id = fm.member_id
	LEFT JOIN user_profiles p ON p.user_id = fm.member_id`

// MemberRepository handles database operations for family memberships.
// member_id is unique, so each user has at most one row.
type MemberRepository struct{}

// NewMemberRepository creates a new membership repository
func NewMemberRepository() *MemberRepository {
	return &MemberRepository{}
}

func scanMember(row rowScanner) (*models.FamilyMember, error) {
	var (
		member  models.FamilyMember
		creator sql.NullInt64
	)
	err := row.Scan(
		&member.ID,
		&member.MemberID,
		&member.FamilyCode,
		&creator,
		&member.ApproveStatus,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	member.CreatorID = int64Ptr(creator)
	return &member, nil
}

func (r *MemberRepository) getMember(ctx context.Context, q database.DBTX, query string, args ...interface{}) (*models.FamilyMember, error) {
	member, err := scanMember(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family member: %w", err)
	}
	return member, nil
}

// FindByMember retrieves the membership row of a user
func (r *MemberRepository) FindByMember(ctx context.Context, q database.DBTX, memberID int64) (*models.FamilyMember, error) {
	return r.getMember(ctx, q, `SELECT `+memberColumns+` FROM family_members WHERE member_id = ?`, memberID)
}

// FindByMemberAndFamily retrieves the membership row of a user in a family
func (r *MemberRepository) FindByMemberAndFamily(ctx context.Context, q database.DBTX, memberID int64, familyCode string) (*models.FamilyMember, error) {
	query := `SELECT ` + memberColumns + ` FROM family_members WHERE member_id = ? AND family_code = ?`
	return r.getMember(ctx, q, query, memberID, familyCode)
}

// FindPending retrieves a pending membership row for a user in a family
func (r *MemberRepository) FindPending(ctx context.Context, q database.DBTX, memberID int64, familyCode string) (*models.FamilyMember, error) {
	query := `SELECT ` + memberColumns + ` FROM family_members WHERE member_id = ? AND family_code = ? AND approve_status = ?`
	return r.getMember(ctx, q, query, memberID, familyCode, models.ApproveStatusPending)
}

// Create inserts a membership row and fills in its ID
func (r *MemberRepository) Create(ctx context.Context, q database.DBTX, member *models.FamilyMember) error {
	query := "INSERT INTO family_members (member_id, family_code, creator_id, approve_status) VALUES (?, ?, ?, ?)"
	id, err := q.ExecReturningID(ctx, query, member.MemberID, member.FamilyCode, member.CreatorID, member.ApproveStatus)
	if err != nil {
		return fmt.Errorf("failed to create family member: %w", err)
	}

	now := time.Now()
	member.ID = id
	member.CreatedAt = now
	member.UpdatedAt = now
	return nil
}

// Update saves the family code, creator and status of a membership row
func (r *MemberRepository) Update(ctx context.Context, q database.DBTX, member *models.FamilyMember) error {
	query := `
		UPDATE family_members
		SET family_code = ?, creator_id = ?, approve_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query, member.FamilyCode, member.CreatorID, member.ApproveStatus, member.ID)
	if err != nil {
		return fmt.Errorf("failed to update family member: %w", err)
	}
	if err := requireRow(result, "family member"); err != nil {
		return err
	}
	member.UpdatedAt = time.Now()
	return nil
}

// Delete removes a membership row
func (r *MemberRepository) Delete(ctx context.Context, q database.DBTX, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM family_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete family member: %w", err)
	}
	return requireRow(result, "family member")
}

// DeleteByFamily removes every membership row of a family and returns how many went
func (r *MemberRepository) DeleteByFamily(ctx context.Context, q database.DBTX, familyCode string) (int64, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM family_members WHERE family_code = ?", familyCode)
	if err != nil {
		return 0, fmt.Errorf("failed to delete family members: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted family members: %w", err)
	}
	return n, nil
}

func scanListing(row rowScanner) (*models.MemberListing, error) {
	var (
		l                        models.MemberListing
		creator, profileID       sql.NullInt64
		first, last, image       sql.NullString
		gender, marital, contact sql.NullString
		address, bio             sql.NullString
		dob                      sql.NullTime
	)
	err := row.Scan(
		&l.ID,
		&l.MemberID,
		&l.FamilyCode,
		&creator,
		&l.ApproveStatus,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.User.ID,
		&l.User.Email,
		&l.User.CountryCode,
		&l.User.Mobile,
		&l.User.Status,
		&l.User.Role,
		&profileID,
		&first,
		&last,
		&image,
		&gender,
		&dob,
		&marital,
		&contact,
		&address,
		&bio,
	)
	if err != nil {
		return nil, err
	}
	l.CreatorID = int64Ptr(creator)
	if profileID.Valid {
		l.Profile = &models.MemberProfile{
			FirstName:     first.String,
			LastName:      last.String,
			Gender:        stringPtr(gender),
			DOB:           timePtr(dob),
			MaritalStatus: stringPtr(marital),
			ContactNumber: stringPtr(contact),
			Address:       stringPtr(address),
			Bio:           stringPtr(bio),
			ImageFile:     stringPtr(image),
		}
	}
	return &l, nil
}

// ListByFamily returns the members of a family in the given state joined with
// their user and profile projections, newest first
func (r *MemberRepository) ListByFamily(ctx context.Context, q database.DBTX, familyCode string, status models.ApproveStatus) ([]models.MemberListing, error) {
	query := listingSelect + `
	WHERE fm.family_code = ? AND fm.approve_status = ?
	ORDER BY fm.created_at DESC, fm.id DESC`

	rows, err := q.QueryContext(ctx, query, familyCode, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	defer rows.Close()

	listings := []models.MemberListing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		listings = append(listings, *listing)
	}
	return listings, rows.Err()
}

// FindListing returns the membership projection of a single user
func (r *MemberRepository) FindListing(ctx context.Context, q database.DBTX, memberID int64) (*models.MemberListing, error) {
	listing, err := scanListing(q.QueryRowContext(ctx, listingSelect+`
	WHERE fm.member_id = ?`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family member: %w", err)
	}
	return listing, nil
}

// ListDemographics returns gender and birth date of approved members that have a profile
func (r *MemberRepository) ListDemographics(ctx context.Context, q database.DBTX, familyCode string) ([]models.Demographic, error) {
	query := `
		SELECT fm.member_id, p.gender, p.dob
		FROM family_members fm
		JOIN user_profiles p ON p.user_id = fm.member_id
		WHERE fm.family_code = ? AND fm.approve_status = ?
	`
	rows, err := q.QueryContext(ctx, query, familyCode, models.ApproveStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list demographics: %w", err)
	}
	defer rows.Close()

	var out []models.Demographic
	for rows.Next() {
		var (
			d      models.Demographic
			gender sql.NullString
			dob    sql.NullTime
		)
		if err := rows.Scan(&d.MemberID, &gender, &dob); err != nil {
			return nil, fmt.Errorf("failed to scan demographic: %w", err)
		}
		d.Gender = stringPtr(gender)
		d.DOB = timePtr(dob)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAll returns every membership row ordered by ID
func (r *MemberRepository) ListAll(ctx context.Context, q database.DBTX) ([]models.FamilyMember, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+memberColumns+` FROM family_members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}
