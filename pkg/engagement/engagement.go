package engagement

import (
	"time"

	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/user"
)

type Counts struct {
	Likes     int            `json:"likesCount"`
	Comments  int            `json:"commentsCount"`
	Reposts   int            `json:"repostsCount"`
	Reactions reaction.Tally `json:"reactionsCount"`
}

// ViewerState is what a single viewer has done to a post.
type ViewerState struct {
	IsLiked      bool           `json:"isLiked"`
	IsReposted   bool           `json:"isReposted"`
	IsBookmarked bool           `json:"isBookmarked"`
	UserReaction *reaction.Kind `json:"userReaction"`
}

// EnrichedPost is a post as clients see it. Author is nil for anonymous
// posts; OriginalPost is nil unless the post is a repost of a post that
// still exists.
type EnrichedPost struct {
	Id             post.PostId  `json:"id"`
	Content        string       `json:"content"`
	IsAnonymous    bool         `json:"isAnonymous"`
	Category       string       `json:"category,omitempty"`
	OriginalPostId post.PostId  `json:"originalPostId,omitempty"`
	Created        time.Time    `json:"createdAt"`
	Author         *user.Author `json:"author"`
	Counts
	ViewerState
	OriginalPost *EnrichedPost `json:"originalPost"`

	authorId string
}

// AuthorId is the real author, also for anonymous posts. It never leaves
// the server.
func (ep *EnrichedPost) AuthorId() string {
	return ep.authorId
}
