package comment

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"ruangluka/pkg/post"
	"ruangluka/pkg/user"
)

var created = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestAddComment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("cant create mock: %s", err)
	}
	defer db.Close()

	r := NewCommentRepo(db)
	author := &user.User{Id: "3", Username: "rob", DisplayName: "Rob"}

	t.Run("success", func(t *testing.T) {
		mock.
			ExpectQuery("INSERT INTO comments").
			WithArgs("p1", "3", "semangat ya").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, created))

		c, err := r.AddComment(context.TODO(), "p1", author, "semangat ya")
		assert.Nil(t, err)
		assert.Equal(t, CommentId("11"), c.Id)
		assert.Equal(t, "rob", c.Author.Username)
		assert.Equal(t, created, c.Created)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.
			ExpectQuery("INSERT INTO comments").
			WillReturnError(fmt.Errorf("mock_db_error"))

		c, err := r.AddComment(context.TODO(), "p1", author, "x")
		assert.Nil(t, c)
		assert.NotNil(t, err)
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}

func TestPostComments(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("cant create mock: %s", err)
	}
	defer db.Close()

	r := NewCommentRepo(db)

	cols := []string{"id", "post_id", "content", "created_at", "id", "username", "display_name", "avatar_url", "is_verified"}
	mock.
		ExpectQuery("SELECT c.id, c.post_id, c.content").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "p1", "pertama", created, 3, "rob", "Rob", nil, false).
			AddRow(2, "p1", "kedua", created.Add(time.Minute), 4, "ken", "Ken", "k.png", true))

	comments, err := r.PostComments(context.TODO(), "p1")
	assert.Nil(t, err)
	if assert.Len(t, comments, 2) {
		assert.Equal(t, "pertama", comments[0].Body)
		assert.Equal(t, "", comments[0].Author.AvatarUrl)
		assert.Equal(t, "k.png", comments[1].Author.AvatarUrl)
		assert.True(t, comments[1].Author.IsVerified)
	}
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommentCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("cant create mock: %s", err)
	}
	defer db.Close()

	r := NewCommentRepo(db)

	t.Run("grouped", func(t *testing.T) {
		mock.
			ExpectQuery("SELECT post_id, COUNT\\(\\*\\) FROM comments").
			WithArgs(pq.Array([]string{"p1", "p2"})).
			WillReturnRows(sqlmock.NewRows([]string{"post_id", "count"}).AddRow("p1", 5))

		counts, err := r.CommentCounts(context.TODO(), []post.PostId{"p1", "p2"})
		assert.Nil(t, err)
		assert.Equal(t, 5, counts["p1"])
		assert.Equal(t, 0, counts["p2"])
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids, no query", func(t *testing.T) {
		counts, err := r.CommentCounts(context.TODO(), nil)
		assert.Nil(t, err)
		assert.Empty(t, counts)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.
			ExpectQuery("SELECT post_id, COUNT").
			WillReturnError(fmt.Errorf("mock_db_error"))

		_, err := r.CommentCounts(context.TODO(), []post.PostId{"p1"})
		assert.NotNil(t, err)
	})
}

func TestDeletePostComments(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("cant create mock: %s", err)
	}
	defer db.Close()

	r := NewCommentRepo(db)

	mock.
		ExpectExec("DELETE FROM comments").
		WithArgs(pq.Array([]string{"p1", "r1"})).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.Nil(t, r.DeletePostComments(context.TODO(), []post.PostId{"p1", "r1"}))
	assert.Nil(t, mock.ExpectationsWereMet())
}
