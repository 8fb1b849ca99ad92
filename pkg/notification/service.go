package notification

import (
	"context"
	"net/http"

	"ruangluka/pkg/common"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/sessions"
)

type (
	IRepo interface {
		Add(context.Context, *Notification) (string, error)
		List(ctx context.Context, userId string) ([]*Notification, error)
		UnreadCount(ctx context.Context, userId string) (int, error)
		MarkAllRead(ctx context.Context, userId string) error
	}

	IPusher interface {
		Push(userId string, msg interface{})
	}
)

type Service struct {
	Repo   IRepo
	Pusher IPusher
}

func NewService(repo IRepo, pusher IPusher) *Service {
	return &Service{
		Repo:   repo,
		Pusher: pusher,
	}
}

// Notify stores n and tells the recipient's open connections about it.
// Users are never notified about their own actions.
func (s *Service) Notify(ctx context.Context, n *Notification) error {
	if n.UserId == "" || n.UserId == n.ActorId {
		return nil
	}
	if _, err := s.Repo.Add(ctx, n); err != nil {
		return err
	}
	s.Pusher.Push(n.UserId, Event{Type: "notification"})
	return nil
}

func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := s.Repo.List(r.Context(), u.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("notification/handlers: can't list notifications: %v", err)
		common.WriteMsg(w, "failed loading notifications", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, list)
}

func (s *Service) Unread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	n, err := s.Repo.UnreadCount(r.Context(), u.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("notification/handlers: can't count unread: %v", err)
		common.WriteMsg(w, "failed counting notifications", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, struct {
		Count int `json:"count"`
	}{n})
}

func (s *Service) MarkRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.Repo.MarkAllRead(r.Context(), u.Id); err != nil {
		logger.Log(r.Context()).Errorf("notification/handlers: can't mark read: %v", err)
		common.WriteMsg(w, "failed updating notifications", http.StatusInternalServerError)
		return
	}

	common.WriteMsg(w, "success", http.StatusOK)
}
