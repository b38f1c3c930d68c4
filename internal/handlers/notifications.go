package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"postroom/internal/notifications"
)

type NotificationsHandler struct {
	repo   notifications.Repository
	logger *slog.Logger
}

func NewNotificationsHandler(repo notifications.Repository, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{repo: repo, logger: logger}
}

// userID reads the authenticated caller from the X-User-ID header set by
// the gateway. Notification data is always scoped to that user.
func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *NotificationsHandler) List() http.HandlerFunc {
	return h.list(false, "Notifications retrieved successfully")
}

func (h *NotificationsHandler) Unread() http.HandlerFunc {
	return h.list(true, "Unread notifications retrieved successfully")
}

func (h *NotificationsHandler) list(unreadOnly bool, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if perPage < 1 || perPage > 100 {
			perPage = 15
		}

		list, err := h.repo.ListForUser(r.Context(), user, unreadOnly, perPage, (page-1)*perPage)
		if err != nil {
			h.logger.Error("list notifications failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching notifications", err)
			return
		}
		total, err := h.repo.CountForUser(r.Context(), user, unreadOnly)
		if err != nil {
			h.logger.Error("count notifications failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching notifications", err)
			return
		}
		unread, err := h.repo.CountForUser(r.Context(), user, true)
		if err != nil {
			h.logger.Error("count unread notifications failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching notifications", err)
			return
		}

		totalPages := int(total) / perPage
		if int(total)%perPage > 0 {
			totalPages++
		}
		if list == nil {
			list = []*notifications.Notification{}
		}
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Data: notifications.ListResult{
				Notifications: list,
				Total:         total,
				Page:          page,
				PerPage:       perPage,
				TotalPages:    totalPages,
			},
			Message:     message,
			UnreadCount: &unread,
		})
	}
}

func (h *NotificationsHandler) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		stats, err := h.repo.StatsForUser(r.Context(), user)
		if err != nil {
			h.logger.Error("notification stats failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching notification statistics", err)
			return
		}
		writeSuccess(w, http.StatusOK, stats, "Notification statistics retrieved successfully")
	}
}

func (h *NotificationsHandler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Notification not found", nil)
			return
		}
		if err := h.repo.MarkRead(r.Context(), user, id); err != nil {
			if errors.Is(err, notifications.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Notification not found", nil)
				return
			}
			h.logger.Error("mark notification read failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error marking notification as read", err)
			return
		}
		h.respondWithUnread(w, r, user, "Notification marked as read")
	}
}

func (h *NotificationsHandler) MarkAllRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		if _, err := h.repo.MarkAllRead(r.Context(), user); err != nil {
			h.logger.Error("mark all notifications read failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error marking all notifications as read", err)
			return
		}
		var zero int64
		writeJSON(w, http.StatusOK, envelope{
			Success:     true,
			Message:     "All notifications marked as read",
			UnreadCount: &zero,
		})
	}
}

func (h *NotificationsHandler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Notification not found", nil)
			return
		}
		if err := h.repo.Delete(r.Context(), user, id); err != nil {
			if errors.Is(err, notifications.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Notification not found", nil)
				return
			}
			h.logger.Error("delete notification failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error deleting notification", err)
			return
		}
		h.respondWithUnread(w, r, user, "Notification deleted successfully")
	}
}

func (h *NotificationsHandler) DeleteRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userID(w, r)
		if !ok {
			return
		}
		if _, err := h.repo.DeleteRead(r.Context(), user); err != nil {
			h.logger.Error("delete read notifications failed", "user_id", user, "error", err)
			writeError(w, http.StatusInternalServerError, "Error deleting read notifications", err)
			return
		}
		h.respondWithUnread(w, r, user, "All read notifications deleted successfully")
	}
}

func (h *NotificationsHandler) respondWithUnread(w http.ResponseWriter, r *http.Request, user uuid.UUID, message string) {
	unread, err := h.repo.CountForUser(r.Context(), user, true)
	if err != nil {
		h.logger.Error("count unread notifications failed", "user_id", user, "error", err)
		writeSuccess(w, http.StatusOK, nil, message)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Message:     message,
		UnreadCount: &unread,
	})
}
