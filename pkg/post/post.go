package post

import (
	"errors"
	"strings"
	"time"

	"ruangluka/pkg/common"
)

var (
	ErrNotFound        = errors.New("post: post not found")
	ErrAlreadyReposted = errors.New("post: already reposted")
	ErrInvalidCategory = errors.New("post: unknown category")
	ErrEmptyContent    = errors.New("post: content is empty")
)

var Categories = []string{
	"Percintaan",
	"Keluarga",
	"Pekerjaan",
	"Persahabatan",
	"Kesehatan Mental",
	"Pendidikan",
	"Keuangan",
	"Lainnya",
}

func ValidCategory(c string) bool {
	if c == "" {
		return true
	}
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

type PostId string

// Post is a curhat as stored. A repost carries OriginalPostId and a copy
// of the original content.
type Post struct {
	Id             PostId    `json:"id" bson:"id"`
	AuthorId       string    `json:"-" bson:"authorId"`
	Content        string    `json:"content" bson:"content"`
	IsAnonymous    bool      `json:"isAnonymous" bson:"isAnonymous"`
	OriginalPostId PostId    `json:"originalPostId,omitempty" bson:"originalPostId,omitempty"`
	Category       string    `json:"category,omitempty" bson:"category,omitempty"`
	Created        time.Time `json:"createdAt" bson:"created"`
}

func (p *Post) IsRepost() bool {
	return p.OriginalPostId != ""
}

// Ids returns post ids in input order.
func Ids(posts []*Post) []PostId {
	ids := make([]PostId, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.Id)
	}
	return ids
}

// New validates a curhat and stamps it with a fresh id.
func New(authorId, content string, anonymous bool, category string, now time.Time) (*Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if !ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	return &Post{
		Id:          newPostId(),
		AuthorId:    authorId,
		Content:     content,
		IsAnonymous: anonymous,
		Category:    category,
		Created:     now,
	}, nil
}

func newPostId() PostId {
	return PostId(common.RandStringRunes(12))
}

// IdStrings converts ids for SQL array parameters.
func IdStrings(ids []PostId) []string {
	s := make([]string, 0, len(ids))
	for _, id := range ids {
		s = append(s, string(id))
	}
	return s
}
