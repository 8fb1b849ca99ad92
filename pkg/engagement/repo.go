package engagement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
)

// Repo keeps likes, reactions and bookmarks. Every table has one row per
// (post_id, user_id).
type Repo struct {
	db *sql.DB
}

func NewEngagementRepo(db *sql.DB) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) LikeCounts(ctx context.Context, ids []post.PostId) (map[post.PostId]int, error) {
	counts := make(map[post.PostId]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT post_id, COUNT(*) FROM likes WHERE post_id = ANY($1) GROUP BY post_id",
		pq.Array(post.IdStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("engagement/repo: failed counting likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id post.PostId
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("engagement/repo: could not scan like count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement/repo: like count rows: %w", err)
	}
	return counts, nil
}

// ReactionTallies returns a four kind tally for every id, zero filled.
func (r *Repo) ReactionTallies(ctx context.Context, ids []post.PostId) (map[post.PostId]reaction.Tally, error) {
	tallies := make(map[post.PostId]reaction.Tally, len(ids))
	for _, id := range ids {
		tallies[id] = reaction.NewTally()
	}
	if len(ids) == 0 {
		return tallies, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT post_id, kind, COUNT(*) FROM reactions WHERE post_id = ANY($1) GROUP BY post_id, kind",
		pq.Array(post.IdStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("engagement/repo: failed counting reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id post.PostId
		var kind reaction.Kind
		var n int
		if err := rows.Scan(&id, &kind, &n); err != nil {
			return nil, fmt.Errorf("engagement/repo: could not scan reaction count: %w", err)
		}
		if t, ok := tallies[id]; ok {
			t.Add(kind, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement/repo: reaction count rows: %w", err)
	}
	return tallies, nil
}

func (r *Repo) LikedBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	return r.markedBy(ctx, "SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2)", userId, ids)
}

func (r *Repo) BookmarkedBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	return r.markedBy(ctx, "SELECT post_id FROM bookmarks WHERE user_id = $1 AND post_id = ANY($2)", userId, ids)
}

func (r *Repo) markedBy(ctx context.Context, query, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	marked := make(map[post.PostId]bool)
	if userId == "" || len(ids) == 0 {
		return marked, nil
	}

	rows, err := r.db.QueryContext(ctx, query, userId, pq.Array(post.IdStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("engagement/repo: failed loading viewer marks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id post.PostId
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("engagement/repo: could not scan post id: %w", err)
		}
		marked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement/repo: viewer mark rows: %w", err)
	}
	return marked, nil
}

func (r *Repo) ReactionsBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]reaction.Kind, error) {
	kinds := make(map[post.PostId]reaction.Kind)
	if userId == "" || len(ids) == 0 {
		return kinds, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT post_id, kind FROM reactions WHERE user_id = $1 AND post_id = ANY($2)",
		userId, pq.Array(post.IdStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("engagement/repo: failed loading viewer reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id post.PostId
		var kind reaction.Kind
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("engagement/repo: could not scan reaction: %w", err)
		}
		kinds[id] = kind
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement/repo: viewer reaction rows: %w", err)
	}
	return kinds, nil
}

// ToggleLike likes the post or takes the like back. It reports whether the
// post is liked afterwards.
func (r *Repo) ToggleLike(ctx context.Context, postId post.PostId, userId string) (bool, error) {
	return r.toggle(ctx, "likes", postId, userId)
}

func (r *Repo) ToggleBookmark(ctx context.Context, postId post.PostId, userId string) (bool, error) {
	return r.toggle(ctx, "bookmarks", postId, userId)
}

func (r *Repo) toggle(ctx context.Context, table string, postId post.PostId, userId string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE post_id = $1 AND user_id = $2", string(postId), userId)
	if err != nil {
		return false, fmt.Errorf("engagement/repo: failed removing from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("engagement/repo: %s rows affected: %w", table, err)
	}
	if n > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO "+table+"(post_id, user_id) VALUES($1, $2) ON CONFLICT DO NOTHING", string(postId), userId)
	if err != nil {
		return false, fmt.Errorf("engagement/repo: failed adding to %s: %w", table, err)
	}
	return true, nil
}

// SetReaction stores the user's reaction, replacing any previous kind.
func (r *Repo) SetReaction(ctx context.Context, postId post.PostId, userId string, kind reaction.Kind) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reactions(post_id, user_id, kind) VALUES($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET kind = EXCLUDED.kind`,
		string(postId), userId, string(kind))
	if err != nil {
		return fmt.Errorf("engagement/repo: failed setting reaction: %w", err)
	}
	return nil
}

func (r *Repo) RemoveReaction(ctx context.Context, postId post.PostId, userId string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM reactions WHERE post_id = $1 AND user_id = $2", string(postId), userId)
	if err != nil {
		return fmt.Errorf("engagement/repo: failed removing reaction: %w", err)
	}
	return nil
}

// BookmarkedPostIds lists the user's bookmarks, latest first.
func (r *Repo) BookmarkedPostIds(ctx context.Context, userId string) ([]post.PostId, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT post_id FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC", userId)
	if err != nil {
		return nil, fmt.Errorf("engagement/repo: failed loading bookmarks: %w", err)
	}
	defer rows.Close()

	ids := []post.PostId{}
	for rows.Next() {
		var id post.PostId
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("engagement/repo: could not scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement/repo: bookmark rows: %w", err)
	}
	return ids, nil
}

// DeleteEngagement drops likes, reactions and bookmarks of the posts in one
// transaction.
func (r *Repo) DeleteEngagement(ctx context.Context, ids []post.PostId) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("engagement/repo: failed starting transaction: %w", err)
	}
	arg := pq.Array(post.IdStrings(ids))
	for _, table := range []string{"likes", "reactions", "bookmarks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE post_id = ANY($1)", arg); err != nil {
			tx.Rollback()
			return fmt.Errorf("engagement/repo: failed deleting %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("engagement/repo: failed committing: %w", err)
	}
	return nil
}
