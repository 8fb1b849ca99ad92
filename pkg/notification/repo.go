package notification

import (
	"context"
	"database/sql"
	"fmt"

	"ruangluka/pkg/user"
)

const ListLimit = 50

type Repo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, n *Notification) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO notifications(user_id, actor_id, kind, post_id) VALUES($1, $2, $3, $4) RETURNING id, created_at",
		n.UserId, n.ActorId, string(n.Kind), sql.NullString{String: n.PostId, Valid: n.PostId != ""}).
		Scan(&id, &n.Created)
	if err != nil {
		return ``, fmt.Errorf("notification/repo: notification wasn't added: %w", err)
	}
	n.Id = id
	return id, nil
}

// List returns the latest ListLimit notifications of the user.
func (r *Repo) List(ctx context.Context, userId string) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.kind, n.post_id, n.is_read, n.created_at,
			u.id, u.username, u.display_name, u.avatar_url, u.is_verified
		FROM notifications n JOIN users u ON u.id = n.actor_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2`, userId, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("notification/repo: failed loading notifications: %w", err)
	}
	defer rows.Close()

	list := []*Notification{}
	for rows.Next() {
		n := &Notification{UserId: userId, Actor: new(user.Author)}
		var kind string
		var postId, avatar sql.NullString
		err := rows.Scan(&n.Id, &kind, &postId, &n.IsRead, &n.Created,
			&n.Actor.Id, &n.Actor.Username, &n.Actor.DisplayName, &avatar, &n.Actor.IsVerified)
		if err != nil {
			return nil, fmt.Errorf("notification/repo: could not scan notification: %w", err)
		}
		n.Kind = Kind(kind)
		n.PostId = postId.String
		n.ActorId = n.Actor.Id
		n.Actor.AvatarUrl = avatar.String
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification/repo: notification rows: %w", err)
	}
	return list, nil
}

func (r *Repo) UnreadCount(ctx context.Context, userId string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read", userId).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notification/repo: failed counting unread: %w", err)
	}
	return n, nil
}

func (r *Repo) MarkAllRead(ctx context.Context, userId string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read", userId)
	if err != nil {
		return fmt.Errorf("notification/repo: failed marking read: %w", err)
	}
	return nil
}
