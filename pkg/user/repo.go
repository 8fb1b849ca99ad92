package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"

	"ruangluka/pkg/common"
)

const userColumns = "id, username, email, display_name, bio, avatar_url, is_verified, is_admin, password, created_at"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	u := new(User)
	var bio, avatar sql.NullString
	err := row.Scan(&u.Id, &u.Username, &u.Email, &u.DisplayName, &bio, &avatar,
		&u.IsVerified, &u.IsAdmin, &u.Password, &u.Created)
	if err != nil {
		return nil, err
	}
	u.Bio = bio.String
	u.AvatarUrl = avatar.String
	return u, nil
}

func (r *UserRepo) Add(ctx context.Context, u *User) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users(username, email, display_name, password) VALUES($1, $2, $3, $4) RETURNING id",
		u.Username, u.Email, u.DisplayName, u.Password).Scan(&id)
	if err != nil {
		return ``, fmt.Errorf("user/repo: user wasn't added: %w", err)
	}
	if id == "" {
		return ``, fmt.Errorf("user/repo: user wasn't added, empty id returned")
	}
	return id, nil
}

func (r *UserRepo) GetByUsernameAndPass(ctx context.Context, uname string, pass string) (*User, error) {
	// login accepts the username or the email
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users where username=$1 OR email=$1", uname)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("user/repo: row scan failed: %w", err)
	}
	if !common.CheckPass(pass, u.Password) {
		return nil, errors.New("user/repo: password is invalid")
	}
	return u, nil
}

func (r *UserRepo) UserExists(ctx context.Context, uname string) bool {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM users where username=$1", uname).Scan(&id)
	return err == nil
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) bool {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM users where email=$1", email).Scan(&id)
	return err == nil
}

func (r *UserRepo) ExistsById(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users where id=$1)", uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user/repo: existence check failed: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) GetById(ctx context.Context, uid string) (*User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users where id=$1", uid)
}

func (r *UserRepo) GetByUsername(ctx context.Context, uname string) (*User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users where username=$1", uname)
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
	}
	return u, nil
}

// GetAuthors returns author projections keyed by user id. Unknown ids are
// absent from the result.
func (r *UserRepo) GetAuthors(ctx context.Context, ids []string) (map[string]*Author, error) {
	authors := make(map[string]*Author, len(ids))
	if len(ids) == 0 {
		return authors, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, display_name, avatar_url, is_verified FROM users WHERE id = ANY($1::int[])",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed loading authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := new(Author)
		var avatar sql.NullString
		if err := rows.Scan(&a.Id, &a.Username, &a.DisplayName, &avatar, &a.IsVerified); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan author: %w", err)
		}
		a.AvatarUrl = avatar.String
		authors[a.Id] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user/repo: authors rows: %w", err)
	}
	return authors, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches users by username or display name, case-insensitive.
func (r *UserRepo) Search(ctx context.Context, query string, limit int) ([]*Author, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, display_name, avatar_url, is_verified FROM users
		WHERE username ILIKE $1 OR display_name ILIKE $1 ORDER BY username LIMIT $2`,
		"%"+likeEscaper.Replace(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("user/repo: user search failed: %w", err)
	}
	defer rows.Close()

	found := []*Author{}
	for rows.Next() {
		a := new(Author)
		var avatar sql.NullString
		if err := rows.Scan(&a.Id, &a.Username, &a.DisplayName, &avatar, &a.IsVerified); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan author: %w", err)
		}
		a.AvatarUrl = avatar.String
		found = append(found, a)
	}
	return found, rows.Err()
}

// UpdateProfile changes the given fields and returns the updated user.
// A username used by someone else gives ErrUsernameTaken.
func (r *UserRepo) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*User, error) {
	if upd.Username != nil {
		var owner string
		err := r.db.QueryRowContext(ctx, "SELECT id FROM users where username=$1", *upd.Username).Scan(&owner)
		switch {
		case err == nil && owner != uid:
			return nil, ErrUsernameTaken
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("user/repo: username check failed: %w", err)
		}
	}

	return r.getOne(ctx,
		`UPDATE users SET
			username = COALESCE($2, username),
			display_name = COALESCE($3, display_name),
			bio = COALESCE($4, bio)
		WHERE id=$1 RETURNING `+userColumns,
		uid, nullable(upd.Username), nullable(upd.DisplayName), nullable(upd.Bio))
}

// Returns all users. Used only for seeding the DB.
func (r *UserRepo) GetAll(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed executing query for getting all users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleFollow follows or unfollows and reports whether the follower
// follows the target afterwards.
func (r *UserRepo) ToggleFollow(ctx context.Context, followerId, followingId string) (bool, error) {
	if followerId == followingId {
		return false, ErrSelfFollow
	}

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id=$1 AND following_id=$2", followerId, followingId)
	if err != nil {
		return false, fmt.Errorf("user/repo: unfollow failed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("user/repo: unfollow result: %w", err)
	} else if n > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO follows(follower_id, following_id) VALUES($1, $2) ON CONFLICT DO NOTHING",
		followerId, followingId)
	if err != nil {
		return false, fmt.Errorf("user/repo: follow failed: %w", err)
	}
	return true, nil
}

func (r *UserRepo) FollowingIds(ctx context.Context, uid string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT following_id FROM follows WHERE follower_id=$1", uid)
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed loading follows: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetProfile loads the user with follow counts, IsFollowing is set for
// a viewer other than the user.
func (r *UserRepo) GetProfile(ctx context.Context, uname, viewerId string) (*Profile, error) {
	u, err := r.GetByUsername(ctx, uname)
	if err != nil {
		return nil, err
	}

	p := &Profile{User: u}
	err = r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM follows WHERE following_id=$1),
			(SELECT COUNT(*) FROM follows WHERE follower_id=$1),
			EXISTS(SELECT 1 FROM follows WHERE follower_id=$2 AND following_id=$1)`,
		u.Id, nullableId(viewerId)).Scan(&p.FollowersCount, &p.FollowingCount, &p.IsFollowing)
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed loading follow counts: %w", err)
	}
	if viewerId == u.Id {
		p.IsFollowing = false
	}
	return p, nil
}

func nullableId(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
