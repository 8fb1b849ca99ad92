package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruangluka/pkg/engagement"
	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/storetest"
)

func newTestTrending(s *storetest.Store) *Trending {
	agg := engagement.NewAggregator(s.Posts(), s.Users(), s.Comments(), s.Engagement())
	tr := NewTrending(s.Posts(), agg)
	tr.now = func() time.Time { return now }
	return tr
}

func TestTrendingScenario(t *testing.T) {
	s := newTestStore()
	seedScenario(s)

	topics, err := newTestTrending(s).Topics(context.Background())
	require.Nil(t, err)
	// p2 is past the window and p3 has no category.
	assert.Equal(t, []TrendingTopic{
		{Category: "Pekerjaan", PostCount: 1, EngagementScore: 1 + 2 + 2*1},
	}, topics)
}

func TestTrendingScoreAndOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddPost(&post.Post{Id: "k1", AuthorId: "2", Content: "x", Category: "Keluarga", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "k2", AuthorId: "2", Content: "x", Category: "Keluarga", Created: now.Add(-2 * time.Hour)})
	s.AddPost(&post.Post{Id: "c1", AuthorId: "3", Content: "x", Category: "Percintaan", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "f1", AuthorId: "3", Content: "x", Category: "Keuangan", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "f2", AuthorId: "3", Content: "x", Category: "Keuangan", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "p1", AuthorId: "4", Content: "x", Category: "Pendidikan", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "p2", AuthorId: "4", Content: "x", Category: "Pendidikan", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "none", AuthorId: "4", Content: "x", Created: now})
	s.Like("none", "1", "2", "3")

	// Percintaan: 1 post + 1 like + 2 for a comment = 4.
	s.Like("c1", "1")
	s.Comment("c1", "2", 1)
	// Keluarga: 2 posts + reaction on k2 = 3.
	require.Nil(t, s.Engagement().SetReaction(ctx, "k2", "1", reaction.Peluk))
	// Keuangan and Pendidikan: 2 posts each, no engagement, tie broken by name.
	// Reposts do not count for trending.
	_, err := s.Posts().Repost(ctx, "1", "p1")
	require.Nil(t, err)

	topics, err := newTestTrending(s).Topics(ctx)
	require.Nil(t, err)
	assert.Equal(t, []TrendingTopic{
		{Category: "Percintaan", PostCount: 1, EngagementScore: 4},
		{Category: "Keluarga", PostCount: 2, EngagementScore: 3},
		{Category: "Keuangan", PostCount: 2, EngagementScore: 2},
		{Category: "Pendidikan", PostCount: 2, EngagementScore: 2},
	}, topics)
}

func TestTrendingTieOnPostCount(t *testing.T) {
	s := newTestStore()
	s.AddPost(&post.Post{Id: "a1", AuthorId: "2", Content: "x", Category: "Lainnya", Created: now})
	s.AddPost(&post.Post{Id: "a2", AuthorId: "2", Content: "x", Category: "Lainnya", Created: now})
	s.AddPost(&post.Post{Id: "b1", AuthorId: "2", Content: "x", Category: "Keluarga", Created: now})
	s.Like("b1", "1")

	topics, err := newTestTrending(s).Topics(context.Background())
	require.Nil(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Lainnya", topics[0].Category)
	assert.Equal(t, "Keluarga", topics[1].Category)
}

func TestTrendingSamplesNewest(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 25; i++ {
		s.AddPost(&post.Post{
			Id:       post.PostId(fmt.Sprintf("p%02d", i)),
			AuthorId: "2",
			Content:  "x",
			Category: "Kesehatan Mental",
			Created:  now.Add(-time.Duration(i) * time.Hour),
		})
	}
	// The five oldest fall outside the sample.
	for i := 20; i < 25; i++ {
		s.Like(post.PostId(fmt.Sprintf("p%02d", i)), "1")
	}
	s.Like("p00", "1")

	topics, err := newTestTrending(s).Topics(context.Background())
	require.Nil(t, err)
	assert.Equal(t, []TrendingTopic{
		{Category: "Kesehatan Mental", PostCount: 25, EngagementScore: 26},
	}, topics)
}

func TestTrendingTopTen(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 12; i++ {
		s.AddPost(&post.Post{
			Id:       post.PostId(fmt.Sprintf("p%02d", i)),
			AuthorId: "2",
			Content:  "x",
			Category: fmt.Sprintf("cat%02d", i),
			Created:  now,
		})
	}

	topics, err := newTestTrending(s).Topics(context.Background())
	require.Nil(t, err)
	assert.Len(t, topics, TrendingTopicsN)
	assert.Equal(t, "cat00", topics[0].Category)
	assert.Equal(t, "cat09", topics[9].Category)
}

func TestTrendingEmpty(t *testing.T) {
	s := newTestStore()
	s.AddPost(&post.Post{Id: "old", AuthorId: "2", Content: "x", Category: "Keluarga", Created: now.Add(-TrendingWindow - time.Minute)})
	s.AddPost(&post.Post{Id: "plain", AuthorId: "2", Content: "x", Created: now})

	topics, err := newTestTrending(s).Topics(context.Background())
	assert.Nil(t, err)
	assert.NotNil(t, topics)
	assert.Empty(t, topics)
	assert.Zero(t, s.Calls("LikeCounts"))
}

func TestTrendingStorageFailure(t *testing.T) {
	s := newTestStore()
	s.FailWith(fmt.Errorf("mongo down"))

	_, err := newTestTrending(s).Topics(context.Background())
	assert.EqualError(t, err, "mongo down")
}
