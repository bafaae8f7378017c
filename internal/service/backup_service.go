package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
)

const backupVersion = "1.0"

// BackupData is a point-in-time export of accounts, families and memberships.
// Password hashes and OTPs are never included.
type BackupData struct {
	Version      string                `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	DatabaseType string                `json:"database_type"`
	Users        []UserBackup          `json:"users"`
	Families     []models.Family       `json:"families"`
	Memberships  []models.FamilyMember `json:"memberships"`
}

// UserBackup is a user together with their profile, if any
type UserBackup struct {
	models.User
	Profile *models.UserProfile `json:"profile,omitempty"`
}

// BackupService exports the database as JSON
type BackupService struct {
	db       *database.DB
	users    *repository.UserRepository
	families *repository.FamilyRepository
	members  *repository.MemberRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, users *repository.UserRepository, families *repository.FamilyRepository, members *repository.MemberRepository, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		db:       db,
		users:    users,
		families: families,
		members:  members,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot reads every exported table
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Users:        []UserBackup{},
		Families:     []models.Family{},
		Memberships:  []models.FamilyMember{},
	}

	users, err := s.users.ListUsers(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		profile, err := s.users.FindProfile(ctx, s.db, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export profile of user %d: %w", u.ID, err)
		}
		backup.Users = append(backup.Users, UserBackup{User: u, Profile: profile})
	}

	families, err := s.families.ListAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to export families: %w", err)
	}
	backup.Families = append(backup.Families, families...)

	members, err := s.members.ListAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to export memberships: %w", err)
	}
	backup.Memberships = append(backup.Memberships, members...)

	return backup, nil
}

// ExportToWriter writes the snapshot as indented JSON to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// Export writes the snapshot to outputPath
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	s.logger.Info("starting database export", zap.String("path", outputPath))

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	backup, err := s.ExportToWriter(ctx, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close output file: %w", closeErr)
	}
	if err != nil {
		return err
	}

	s.logger.Info("database exported",
		zap.String("path", outputPath),
		zap.Int("users", len(backup.Users)),
		zap.Int("families", len(backup.Families)),
		zap.Int("memberships", len(backup.Memberships)),
	)
	return nil
}
