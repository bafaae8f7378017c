package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kinship/internal/database"
	"kinship/internal/models"
)

const familyColumns = "id, family_code, name, photo, status, created_by, created_at, updated_at"

// FamilyRepository handles database operations for families
type FamilyRepository struct{}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository() *FamilyRepository {
	return &FamilyRepository{}
}

func scanFamily(row rowScanner) (*models.Family, error) {
	var (
		family    models.Family
		photo     sql.NullString
		createdBy sql.NullInt64
	)
	err := row.Scan(
		&family.ID,
		&family.FamilyCode,
		&family.Name,
		&photo,
		&family.Status,
		&createdBy,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	family.Photo = stringPtr(photo)
	family.CreatedBy = int64Ptr(createdBy)
	return &family, nil
}

func (r *FamilyRepository) getFamily(ctx context.Context, q database.DBTX, query string, args ...interface{}) (*models.Family, error) {
	family, err := scanFamily(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

func (r *FamilyRepository) listFamilies(ctx context.Context, q database.DBTX, query string, args ...interface{}) ([]models.Family, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	families := []models.Family{}
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *family)
	}
	return families, rows.Err()
}

// FindActiveByCode retrieves an active family by code
func (r *FamilyRepository) FindActiveByCode(ctx context.Context, q database.DBTX, code string) (*models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE family_code = ? AND status = ?`
	return r.getFamily(ctx, q, query, code, models.FamilyStatusActive)
}

// FindByCode retrieves a family by code regardless of status
func (r *FamilyRepository) FindByCode(ctx context.Context, q database.DBTX, code string) (*models.Family, error) {
	return r.getFamily(ctx, q, `SELECT `+familyColumns+` FROM families WHERE family_code = ?`, code)
}

// FindByID retrieves a family by ID
func (r *FamilyRepository) FindByID(ctx context.Context, q database.DBTX, id int64) (*models.Family, error) {
	return r.getFamily(ctx, q, `SELECT `+familyColumns+` FROM families WHERE id = ?`, id)
}

// Create inserts a new family and fills in its ID
func (r *FamilyRepository) Create(ctx context.Context, q database.DBTX, family *models.Family) error {
	query := "INSERT INTO families (family_code, name, photo, status, created_by) VALUES (?, ?, ?, ?, ?)"
	id, err := q.ExecReturningID(ctx, query, family.FamilyCode, family.Name, family.Photo, family.Status, family.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	now := time.Now()
	family.ID = id
	family.CreatedAt = now
	family.UpdatedAt = now
	return nil
}

// Update saves the name, photo and status of a family
func (r *FamilyRepository) Update(ctx context.Context, q database.DBTX, family *models.Family) error {
	query := "UPDATE families SET name = ?, photo = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	result, err := q.ExecContext(ctx, query, family.Name, family.Photo, family.Status, family.ID)
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	if err := requireRow(result, "family"); err != nil {
		return err
	}
	family.UpdatedAt = time.Now()
	return nil
}

// Delete removes a family row. Its membership rows belong to MemberRepository.
func (r *FamilyRepository) Delete(ctx context.Context, q database.DBTX, family *models.Family) error {
	result, err := q.ExecContext(ctx, "DELETE FROM families WHERE id = ?", family.ID)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return requireRow(result, "family")
}

// ListAll returns every family, newest first
func (r *FamilyRepository) ListAll(ctx context.Context, q database.DBTX) ([]models.Family, error) {
	return r.listFamilies(ctx, q, `SELECT `+familyColumns+` FROM families ORDER BY created_at DESC, id DESC`)
}

// Search finds active families whose name or code contains term
func (r *FamilyRepository) Search(ctx context.Context, q database.DBTX, term string, limit int) ([]models.Family, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	query := `SELECT ` + familyColumns + `
		FROM families
		WHERE status = ? AND (LOWER(name) LIKE ? ESCAPE '!' OR LOWER(family_code) LIKE ? ESCAPE '!')
		ORDER BY name, id
		LIMIT ?`
	return r.listFamilies(ctx, q, query, models.FamilyStatusActive, pattern, pattern, limit)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
