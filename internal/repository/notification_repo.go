package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kinship/internal/database"
	"kinship/internal/models"
)

// NotificationRepository handles persistence of notifications and their recipients
type NotificationRepository struct{}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Create stores a notification with one recipient row per distinct recipient
// and returns the notification ID. Run it inside a transaction.
func (r *NotificationRepository) Create(ctx context.Context, q database.DBTX, event models.NotificationEvent, createdBy *int64) (int64, error) {
	var familyCode *string
	if event.FamilyCode != "" {
		familyCode = &event.FamilyCode
	}
	var referenceID *int64
	if event.ReferenceID != 0 {
		referenceID = &event.ReferenceID
	}

	query := `
		INSERT INTO notifications (type, title, message, family_code, reference_id, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := q.ExecReturningID(ctx, query, event.Type, event.Title, event.Message, familyCode, referenceID, createdBy)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification: %w", err)
	}

	seen := make(map[int64]bool, len(event.RecipientIDs))
	for _, userID := range event.RecipientIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		if _, err := q.ExecContext(ctx,
			"INSERT INTO notification_recipients (notification_id, user_id) VALUES (?, ?)", id, userID); err != nil {
			return 0, fmt.Errorf("failed to add notification recipient: %w", err)
		}
	}

	return id, nil
}

// ListFamilyAdmins returns the family creator plus every approved member with an
// admin-class role, ascending and without duplicates
func (r *NotificationRepository) ListFamilyAdmins(ctx context.Context, q database.DBTX, familyCode string) ([]int64, error) {
	query := `
		SELECT created_by FROM families WHERE family_code = ? AND created_by IS NOT NULL
		UNION
		SELECT u.id
		FROM family_members fm
		JOIN users u ON u.id = fm.member_id
		WHERE fm.family_code = ? AND fm.approve_status = ? AND u.role >= ?
		ORDER BY 1
	`
	rows, err := q.QueryContext(ctx, query, familyCode, familyCode, models.ApproveStatusApproved, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list family admins: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListForUser returns the notifications addressed to a user, newest first
func (r *NotificationRepository) ListForUser(ctx context.Context, q database.DBTX, userID int64, limit, offset int) ([]models.Notification, error) {
	query := `
		SELECT n.id, n.type, n.title, n.message, n.family_code, n.reference_id, n.created_by, nr.read_at, n.created_at
		FROM notification_recipients nr
		JOIN notifications n ON n.id = nr.notification_id
		WHERE nr.user_id = ?
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := q.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var (
			n                      models.Notification
			familyCode             sql.NullString
			referenceID, createdBy sql.NullInt64
			readAt                 sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &familyCode, &referenceID, &createdBy, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.FamilyCode = stringPtr(familyCode)
		n.ReferenceID = int64Ptr(referenceID)
		n.CreatedBy = int64Ptr(createdBy)
		n.ReadAt = timePtr(readAt)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread returns how many notifications the user has not read
func (r *NotificationRepository) CountUnread(ctx context.Context, q database.DBTX, userID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notification_recipients WHERE user_id = ? AND read_at IS NULL", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read for the user. Already-read
// notifications keep their original read time.
func (r *NotificationRepository) MarkRead(ctx context.Context, q database.DBTX, userID, notificationID int64) error {
	var exists int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notification_recipients WHERE user_id = ? AND notification_id = ?",
		userID, notificationID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to find notification: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("notification: %w", ErrNotFound)
	}

	_, err = q.ExecContext(ctx,
		"UPDATE notification_recipients SET read_at = CURRENT_TIMESTAMP WHERE user_id = ? AND notification_id = ? AND read_at IS NULL",
		userID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// CountForUser returns the total number of notifications addressed to a user
func (r *NotificationRepository) CountForUser(ctx context.Context, q database.DBTX, userID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_recipients WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
