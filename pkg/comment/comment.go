package comment

import (
	"time"

	"ruangluka/pkg/post"
	"ruangluka/pkg/user"
)

type CommentId string

type Comment struct {
	Id      CommentId    `json:"id"`
	PostId  post.PostId  `json:"postId"`
	Author  *user.Author `json:"author"`
	Created time.Time    `json:"createdAt"`
	Body    string       `json:"content"`
}
