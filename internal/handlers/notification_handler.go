package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"kinship/internal/models"
	"kinship/internal/service"
)

// NotificationHandler serves the caller's notification inbox
type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, logger: logger}
}

type notificationPage struct {
	Items  []models.Notification `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// List returns a page of notifications, newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	items, total, err := h.notificationService.ListForUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	respondJSON(w, http.StatusOK, "Notifications fetched successfully", notificationPage{
		Items: items, Total: total, Limit: limit, Offset: offset,
	})
}

// UnreadCount returns the number of unread notifications
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	n, err := h.notificationService.UnreadCount(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Unread count fetched successfully", map[string]int{"count": n})
}

// MarkRead marks one notification read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	userID, _ := GetUserIDFromContext(r.Context())
	if err := h.notificationService.MarkRead(r.Context(), userID, id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Notification marked as read", nil)
}
