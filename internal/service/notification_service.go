package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
)

// UserChannel is the realtime channel a user's notifications are published on
func UserChannel(userID int64) string {
	return "notifications:user:" + strconv.FormatInt(userID, 10)
}

// EmailLookup resolves user IDs to email addresses
type EmailLookup interface {
	FindEmails(ctx context.Context, q database.DBTX, ids []int64) (map[int64]string, error)
}

// NotificationService persists notifications and delivers them by email and
// realtime publish. Delivery is best-effort; only persistence errors are returned.
type NotificationService struct {
	uow       *database.UnitOfWork
	repo      *repository.NotificationRepository
	emails    EmailLookup
	mailer    Mailer
	publisher Publisher
	logger    *zap.Logger
}

// NewNotificationService creates a notification service. mailer and publisher may be nil.
func NewNotificationService(uow *database.UnitOfWork, repo *repository.NotificationRepository, emails EmailLookup, mailer Mailer, publisher Publisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		uow:       uow,
		repo:      repo,
		emails:    emails,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger,
	}
}

// ResolveAdmins returns the admin user IDs of a family
func (s *NotificationService) ResolveAdmins(ctx context.Context, familyCode string) ([]int64, error) {
	return s.repo.ListFamilyAdmins(ctx, s.uow.DB(), familyCode)
}

type realtimeMessage struct {
	ID          int64                   `json:"id"`
	Type        models.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	FamilyCode  string                  `json:"familyCode,omitempty"`
	ReferenceID int64                   `json:"referenceId,omitempty"`
}

// Notify stores one notification with a recipient row per user, then delivers it
func (s *NotificationService) Notify(ctx context.Context, event models.NotificationEvent, triggeredBy *int64) error {
	if len(event.RecipientIDs) == 0 {
		return nil
	}

	var id int64
	err := s.uow.Do(ctx, func(tx *database.Tx) error {
		var err error
		id, err = s.repo.Create(ctx, tx, event, triggeredBy)
		if err != nil {
			return err
		}
		tx.OnCommit(func(ctx context.Context) error {
			s.deliver(ctx, id, event)
			return nil
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.logger.Debug("notification stored",
		zap.Int64("notification_id", id),
		zap.String("type", string(event.Type)),
		zap.Int("recipients", len(event.RecipientIDs)),
	)
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, id int64, event models.NotificationEvent) {
	if s.mailer != nil && s.mailer.IsEnabled() {
		emails, err := s.emails.FindEmails(ctx, s.uow.DB(), event.RecipientIDs)
		if err != nil {
			s.logger.Warn("failed to resolve notification emails", zap.Int64("notification_id", id), zap.Error(err))
		}
		for userID, email := range emails {
			if err := s.mailer.SendNotificationEmail(ctx, email, event.Title, event.Message); err != nil {
				s.logger.Warn("notification email failed",
					zap.Int64("notification_id", id),
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
			}
		}
	}

	if s.publisher != nil {
		payload, err := json.Marshal(realtimeMessage{
			ID:          id,
			Type:        event.Type,
			Title:       event.Title,
			Message:     event.Message,
			FamilyCode:  event.FamilyCode,
			ReferenceID: event.ReferenceID,
		})
		if err != nil {
			s.logger.Error("failed to encode realtime notification", zap.Error(err))
			return
		}
		for _, userID := range event.RecipientIDs {
			if err := s.publisher.Publish(ctx, UserChannel(userID), payload); err != nil {
				s.logger.Warn("realtime publish failed",
					zap.Int64("notification_id", id),
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
			}
		}
	}
}

// ListForUser returns a page of the user's notifications and the total count
func (s *NotificationService) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := s.uow.DB()
	items, err := s.repo.ListForUser(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountForUser(ctx, q, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UnreadCount returns the number of unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnread(ctx, s.uow.DB(), userID)
}

// MarkRead marks a notification read for the user
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	err := s.repo.MarkRead(ctx, s.uow.DB(), userID, notificationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
