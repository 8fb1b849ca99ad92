package comment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"ruangluka/pkg/post"
	"ruangluka/pkg/user"
)

type Repo struct {
	db *sql.DB
}

func NewCommentRepo(db *sql.DB) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) AddComment(ctx context.Context, postId post.PostId, author *user.User, body string) (*Comment, error) {
	c := &Comment{
		PostId: postId,
		Author: author.Author(),
		Body:   body,
	}
	var id string
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO comments(post_id, user_id, content) VALUES($1, $2, $3) RETURNING id, created_at",
		string(postId), author.Id, body).Scan(&id, &c.Created)
	if err != nil {
		return nil, fmt.Errorf("comment/repo: comment wasn't added: %w", err)
	}
	c.Id = CommentId(id)
	return c, nil
}

// PostComments returns the post's comments oldest first.
func (r *Repo) PostComments(ctx context.Context, postId post.PostId) ([]*Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.content, c.created_at,
			u.id, u.username, u.display_name, u.avatar_url, u.is_verified
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id`, string(postId))
	if err != nil {
		return nil, fmt.Errorf("comment/repo: failed loading comments: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		c := &Comment{Author: new(user.Author)}
		var id string
		var avatar sql.NullString
		err := rows.Scan(&id, &c.PostId, &c.Body, &c.Created,
			&c.Author.Id, &c.Author.Username, &c.Author.DisplayName, &avatar, &c.Author.IsVerified)
		if err != nil {
			return nil, fmt.Errorf("comment/repo: could not scan comment: %w", err)
		}
		c.Id = CommentId(id)
		c.Author.AvatarUrl = avatar.String
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comment/repo: comments rows: %w", err)
	}
	return comments, nil
}

// CommentCounts counts comments of every post in ids with one grouped
// query. Posts without comments are absent from the result.
func (r *Repo) CommentCounts(ctx context.Context, ids []post.PostId) (map[post.PostId]int, error) {
	counts := make(map[post.PostId]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT post_id, COUNT(*) FROM comments WHERE post_id = ANY($1) GROUP BY post_id",
		pq.Array(post.IdStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("comment/repo: failed counting comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id post.PostId
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("comment/repo: could not scan count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comment/repo: count rows: %w", err)
	}
	return counts, nil
}

func (r *Repo) DeletePostComments(ctx context.Context, ids []post.PostId) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE post_id = ANY($1)", pq.Array(post.IdStrings(ids)))
	if err != nil {
		return fmt.Errorf("comment/repo: failed deleting comments: %w", err)
	}
	return nil
}
