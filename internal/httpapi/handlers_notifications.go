package httpapi

import (
	"net/http"

	"github.com/flowsync/flowsync/internal/types"
)

// Notification routes are recipient-scoped: every operation acts on the
// authenticated user's own notifications, so a user can never read or mutate
// another user's inbox by guessing ids.

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, actor *types.User) {
	notifications, err := s.store.ListNotifications(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, actor *types.User) {
	count, err := s.store.UnreadCount(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := s.store.MarkNotificationRead(r.Context(), r.PathValue("id"), actor.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := s.store.MarkAllNotificationsRead(r.Context(), actor.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := s.store.DeleteNotification(r.Context(), r.PathValue("id"), actor.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
