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
	"ruangluka/pkg/user"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *storetest.Store {
	s := storetest.New()
	s.Now = func() time.Time { return now }
	for _, id := range []string{"1", "2", "3", "4"} {
		s.AddUser(&user.User{Id: id, Username: "user" + id})
	}
	return s
}

func newTestRanker(s *storetest.Store) *Ranker {
	agg := engagement.NewAggregator(s.Posts(), s.Users(), s.Comments(), s.Engagement())
	r := NewRanker(s.Posts(), s.Users(), agg)
	r.now = func() time.Time { return now }
	return r
}

// seedScenario adds three posts: p1 fresh with 2 likes and a comment,
// p2 200 hours old without engagement, p3 10 hours old with 5 comments by
// an author viewer 1 follows.
func seedScenario(s *storetest.Store) {
	s.AddPost(&post.Post{Id: "p1", AuthorId: "2", Content: "rapat terus", Category: "Pekerjaan", Created: now})
	s.AddPost(&post.Post{Id: "p2", AuthorId: "2", Content: "lembur", Category: "Pekerjaan", Created: now.Add(-200 * time.Hour)})
	s.AddPost(&post.Post{Id: "p3", AuthorId: "3", Content: "kangen rumah", Created: now.Add(-10 * time.Hour)})
	s.Like("p1", "3", "4")
	s.Comment("p1", "3", 1)
	s.Comment("p3", "2", 5)
	s.Follow("1", "3")
}

func TestRecencyDecay(t *testing.T) {
	assert.Equal(t, 1.0, RecencyDecay(0))
	assert.Equal(t, 0.5, RecencyDecay(84*time.Hour))
	assert.Equal(t, 0.0, RecencyDecay(168*time.Hour))
	assert.Equal(t, 0.0, RecencyDecay(200*time.Hour))
	assert.Equal(t, 1.0, RecencyDecay(-time.Hour))
	assert.InDelta(t, 0.75, RecencyDecay(42*time.Hour), 1e-9)
}

func TestEngagementScore(t *testing.T) {
	c := engagement.Counts{Likes: 2, Comments: 1, Reposts: 1, Reactions: reaction.Tally{reaction.Peluk: 1}}
	assert.Equal(t, 2+3+4+2, EngagementScore(c))
}

func TestRankScenario(t *testing.T) {
	s := newTestStore()
	seedScenario(s)
	r := newTestRanker(s)

	feed, err := r.Rank(context.Background(), "1")
	require.Nil(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, []post.PostId{"p3", "p1", "p2"}, []post.PostId{feed[0].Id, feed[1].Id, feed[2].Id})

	followed := map[string]bool{"3": true}
	assert.InDelta(t, 20.405, Score(feed[0], "1", followed, now), 0.001)
	assert.InDelta(t, 12.0, Score(feed[1], "1", followed, now), 1e-9)
	assert.InDelta(t, 0.0, Score(feed[2], "1", followed, now), 1e-9)
}

func TestScoreBoosts(t *testing.T) {
	s := newTestStore()
	s.AddPost(&post.Post{Id: "own", AuthorId: "1", Content: "a", Created: now.Add(-DecayHorizon)})
	s.AddPost(&post.Post{Id: "anon", AuthorId: "4", Content: "b", IsAnonymous: true, Created: now.Add(-DecayHorizon)})
	s.AddPost(&post.Post{Id: "anon-followed", AuthorId: "3", Content: "c", IsAnonymous: true, Created: now.Add(-DecayHorizon)})
	s.Follow("1", "3")
	r := newTestRanker(s)

	feed, err := r.Rank(context.Background(), "1")
	require.Nil(t, err)
	followed := map[string]bool{"3": true}

	scores := map[post.PostId]float64{}
	for _, ep := range feed {
		scores[ep.Id] = Score(ep, "1", followed, now)
	}
	assert.Equal(t, 3.0, scores["own"])
	assert.Equal(t, 1.0, scores["anon"])
	assert.Equal(t, 6.0, scores["anon-followed"])
	assert.Equal(t, post.PostId("anon-followed"), feed[0].Id)
	for _, ep := range feed {
		if ep.IsAnonymous {
			assert.Nil(t, ep.Author)
		}
	}
}

func TestRankTieBreak(t *testing.T) {
	s := newTestStore()
	s.AddPost(&post.Post{Id: "a", AuthorId: "2", Content: "x", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "c", AuthorId: "2", Content: "x", Created: now.Add(-time.Hour)})
	s.AddPost(&post.Post{Id: "b", AuthorId: "2", Content: "x", Created: now.Add(-time.Hour)})
	r := newTestRanker(s)

	feed, err := r.Rank(context.Background(), "1")
	require.Nil(t, err)
	assert.Equal(t, []post.PostId{"c", "b", "a"}, []post.PostId{feed[0].Id, feed[1].Id, feed[2].Id})

	again, err := r.Rank(context.Background(), "1")
	require.Nil(t, err)
	assert.Equal(t, feed, again)
}

func TestRankWindowBound(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 120; i++ {
		s.AddPost(&post.Post{
			Id:       post.PostId(fmt.Sprintf("p%03d", i)),
			AuthorId: "2",
			Content:  "curhat",
			Created:  now.Add(-time.Duration(i) * time.Minute),
		})
	}
	// Older than the candidate window, however popular.
	s.Like("p110", "1", "2", "3", "4")
	s.Comment("p110", "3", 30)
	r := newTestRanker(s)

	feed, err := r.Rank(context.Background(), "1")
	require.Nil(t, err)
	assert.Len(t, feed, FeedSize)

	oldest := now.Add(-(CandidateWindow - 1) * time.Minute)
	for _, ep := range feed {
		assert.False(t, ep.Created.Before(oldest), ep.Id)
		assert.NotEqual(t, post.PostId("p110"), ep.Id)
	}
}

func TestRankEmpty(t *testing.T) {
	r := newTestRanker(newTestStore())

	feed, err := r.Rank(context.Background(), "1")
	assert.Nil(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestRankStorageFailure(t *testing.T) {
	s := newTestStore()
	seedScenario(s)
	s.FailWith(fmt.Errorf("mongo down"))
	r := newTestRanker(s)

	feed, err := r.Rank(context.Background(), "1")
	assert.Nil(t, feed)
	assert.EqualError(t, err, "mongo down")
}
