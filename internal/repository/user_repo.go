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

const userColumns = `id, email, country_code, mobile, password_hash, status, role, created_by,
	otp, otp_expires_at, verified_at, last_login_at, created_at, updated_at`

const profileColumns = `id, user_id, first_name, last_name, profile_image, gender, dob, marital_status,
	spouse_name, father_name, mother_name, contact_number, address, bio, family_code, created_at, updated_at`

// UserRepository handles database operations for users and their profiles.
// Every method runs on the handle it is given, so callers choose between the
// pool and an open transaction.
type UserRepository struct{}

// NewUserRepository creates a new user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		createdBy  sql.NullInt64
		otp        sql.NullString
		otpExpires sql.NullTime
		verified   sql.NullTime
		last       sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.CountryCode,
		&user.Mobile,
		&user.PasswordHash,
		&user.Status,
		&user.Role,
		&createdBy,
		&otp,
		&otpExpires,
		&verified,
		&last,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedBy = int64Ptr(createdBy)
	user.OTP = stringPtr(otp)
	user.OTPExpiresAt = timePtr(otpExpires)
	user.VerifiedAt = timePtr(verified)
	user.LastLoginAt = timePtr(last)
	return &user, nil
}

func (r *UserRepository) getUser(ctx context.Context, q database.DBTX, query string, args ...interface{}) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// FindVerifiedByEmailOrContact returns a verified user matching the email or
// the country code and mobile pair. An empty mobile never matches.
func (r *UserRepository) FindVerifiedByEmailOrContact(ctx context.Context, q database.DBTX, email, countryCode, mobile string) (*models.User, error) {
	if mobile == "" {
		query := `SELECT ` + userColumns + ` FROM users WHERE status = ? AND email = ? ORDER BY id LIMIT 1`
		return r.getUser(ctx, q, query, models.UserStatusActive, email)
	}
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE status = ? AND (email = ? OR (country_code = ? AND mobile = ?))
		ORDER BY id
		LIMIT 1`
	return r.getUser(ctx, q, query, models.UserStatusActive, email, countryCode, mobile)
}

// FindUserByID retrieves a user by ID
func (r *UserRepository) FindUserByID(ctx context.Context, q database.DBTX, id int64) (*models.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByEmail retrieves the account for an email, preferring the verified one
func (r *UserRepository) FindByEmail(ctx context.Context, q database.DBTX, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = ?
		ORDER BY CASE WHEN status = 1 THEN 0 ELSE 1 END, id DESC
		LIMIT 1`
	return r.getUser(ctx, q, query, email)
}

// CreateUser inserts a new user and fills in its ID
func (r *UserRepository) CreateUser(ctx context.Context, q database.DBTX, user *models.User) error {
	query := `
		INSERT INTO users (email, country_code, mobile, password_hash, status, role, created_by, otp, otp_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := q.ExecReturningID(ctx, query,
		user.Email,
		user.CountryCode,
		user.Mobile,
		user.PasswordHash,
		user.Status,
		user.Role,
		user.CreatedBy,
		user.OTP,
		user.OTPExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	now := time.Now()
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpdateRegistration overwrites an unverified account with fresh registration details
func (r *UserRepository) UpdateRegistration(ctx context.Context, q database.DBTX, user *models.User) error {
	query := `
		UPDATE users
		SET country_code = ?, mobile = ?, password_hash = ?, role = ?, otp = ?, otp_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`
	result, err := q.ExecContext(ctx, query,
		user.CountryCode, user.Mobile, user.PasswordHash, user.Role, user.OTP, user.OTPExpiresAt,
		user.ID, models.UserStatusUnverified)
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	return requireRow(result, "user")
}

// SetOTP stores a new one-time password for the user
func (r *UserRepository) SetOTP(ctx context.Context, q database.DBTX, userID int64, otp string, expiresAt time.Time) error {
	query := "UPDATE users SET otp = ?, otp_expires_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := q.ExecContext(ctx, query, otp, expiresAt, userID); err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	return nil
}

// MarkVerified activates the account and clears its OTP
func (r *UserRepository) MarkVerified(ctx context.Context, q database.DBTX, userID int64, at time.Time) error {
	query := `
		UPDATE users
		SET status = ?, otp = NULL, otp_expires_at = NULL, verified_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := q.ExecContext(ctx, query, models.UserStatusActive, at, userID); err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, q database.DBTX, userID int64, at time.Time) error {
	if _, err := q.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", at, userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// FindEmails returns the email address of each existing user in ids
func (r *UserRepository) FindEmails(ctx context.Context, q database.DBTX, ids []int64) (map[int64]string, error) {
	emails := make(map[int64]string, len(ids))
	for _, id := range ids {
		var email string
		err := q.QueryRowContext(ctx, "SELECT email FROM users WHERE id = ?", id).Scan(&email)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get user email: %w", err)
		}
		emails[id] = email
	}
	return emails, nil
}

// ListUsers returns every user ordered by ID
func (r *UserRepository) ListUsers(ctx context.Context, q database.DBTX) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var (
		p                            models.UserProfile
		image, gender, marital       sql.NullString
		spouse, father, mother       sql.NullString
		contact, address, bio, fcode sql.NullString
		dob                          sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&image,
		&gender,
		&dob,
		&marital,
		&spouse,
		&father,
		&mother,
		&contact,
		&address,
		&bio,
		&fcode,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProfileImage = stringPtr(image)
	p.Gender = stringPtr(gender)
	p.DOB = timePtr(dob)
	p.MaritalStatus = stringPtr(marital)
	p.SpouseName = stringPtr(spouse)
	p.FatherName = stringPtr(father)
	p.MotherName = stringPtr(mother)
	p.ContactNumber = stringPtr(contact)
	p.Address = stringPtr(address)
	p.Bio = stringPtr(bio)
	p.FamilyCode = stringPtr(fcode)
	return &p, nil
}

// CreateProfile inserts the profile for a user and fills in its ID
func (r *UserRepository) CreateProfile(ctx context.Context, q database.DBTX, profile *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, first_name, last_name, profile_image, gender, dob, marital_status,
			spouse_name, father_name, mother_name, contact_number, address, bio, family_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := q.ExecReturningID(ctx, query,
		profile.UserID,
		profile.FirstName,
		profile.LastName,
		profile.ProfileImage,
		profile.Gender,
		profile.DOB,
		profile.MaritalStatus,
		profile.SpouseName,
		profile.FatherName,
		profile.MotherName,
		profile.ContactNumber,
		profile.Address,
		profile.Bio,
		profile.FamilyCode,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	now := time.Now()
	profile.ID = id
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return nil
}

// FindProfile retrieves the profile of a user
func (r *UserRepository) FindProfile(ctx context.Context, q database.DBTX, userID int64) (*models.UserProfile, error) {
	profile, err := scanProfile(q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfileNames sets the first and last name on an existing profile
func (r *UserRepository) UpdateProfileNames(ctx context.Context, q database.DBTX, userID int64, firstName, lastName string) error {
	query := "UPDATE user_profiles SET first_name = ?, last_name = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?"
	if _, err := q.ExecContext(ctx, query, firstName, lastName, userID); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
