package notification

import (
	"time"

	"ruangluka/pkg/user"
)

type Kind string

const (
	KindLike     Kind = "like"
	KindComment  Kind = "comment"
	KindRepost   Kind = "repost"
	KindReaction Kind = "reaction"
	KindFollow   Kind = "follow"
)

type Notification struct {
	Id      string       `json:"id"`
	UserId  string       `json:"-"`
	ActorId string       `json:"-"`
	Actor   *user.Author `json:"actor,omitempty"`
	Kind    Kind         `json:"type"`
	PostId  string       `json:"postId,omitempty"`
	IsRead  bool         `json:"isRead"`
	Created time.Time    `json:"createdAt"`
}

// Event is what connected clients receive, they fetch the details
// themselves.
type Event struct {
	Type string `json:"type"`
}
