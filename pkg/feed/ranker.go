package feed

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ruangluka/pkg/engagement"
	"ruangluka/pkg/post"
)

const (
	CandidateWindow = 100
	FeedSize        = 50
	DecayHorizon    = 168 * time.Hour

	followBoost    = 5
	ownBoost       = 3
	anonymousBoost = 1
)

type (
	PostSource interface {
		Recent(ctx context.Context, limit int) ([]*post.Post, error)
	}

	FollowSource interface {
		FollowingIds(ctx context.Context, userId string) ([]string, error)
	}

	Enricher interface {
		EnrichMany(ctx context.Context, posts []*post.Post, viewerId string) ([]*engagement.EnrichedPost, error)
	}
)

// ScoredCandidate lives only while a feed is being ranked.
type ScoredCandidate struct {
	*engagement.EnrichedPost
	Score float64
}

type Ranker struct {
	posts    PostSource
	follows  FollowSource
	enricher Enricher
	now      func() time.Time
}

func NewRanker(ps PostSource, fs FollowSource, e Enricher) *Ranker {
	return &Ranker{
		posts:    ps,
		follows:  fs,
		enricher: e,
		now:      time.Now,
	}
}

// Rank builds the viewer's feed from the most recent CandidateWindow posts,
// best scored first, at most FeedSize of them.
func (r *Ranker) Rank(ctx context.Context, viewerId string) ([]*engagement.EnrichedPost, error) {
	var (
		candidates []*post.Post
		following  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		candidates, err = r.posts.Recent(gctx, CandidateWindow)
		return err
	})
	g.Go(func() (err error) {
		following, err = r.follows.FollowingIds(gctx, viewerId)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enriched, err := r.enricher.EnrichMany(ctx, candidates, viewerId)
	if err != nil {
		return nil, err
	}

	followed := make(map[string]bool, len(following))
	for _, id := range following {
		followed[id] = true
	}
	now := r.now()
	scored := make([]ScoredCandidate, 0, len(enriched))
	for _, ep := range enriched {
		scored = append(scored, ScoredCandidate{ep, Score(ep, viewerId, followed, now)})
	}
	sortCandidates(scored)

	if len(scored) > FeedSize {
		scored = scored[:FeedSize]
	}
	feed := make([]*engagement.EnrichedPost, 0, len(scored))
	for _, sc := range scored {
		feed = append(feed, sc.EnrichedPost)
	}
	return feed, nil
}

// sortCandidates orders by score, equal scores fall back to newest first
// and then to the greater id.
func sortCandidates(scored []ScoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.After(b.Created)
		}
		return a.Id > b.Id
	})
}

// RecencyDecay falls linearly from 1 for a new post to 0 at DecayHorizon.
func RecencyDecay(age time.Duration) float64 {
	d := 1 - age.Hours()/DecayHorizon.Hours()
	return math.Max(0, math.Min(1, d))
}

func EngagementScore(c engagement.Counts) int {
	return c.Likes + 3*c.Comments + 4*c.Reposts + 2*c.Reactions.Total()
}

// Score rates a post for viewerId. Follow and own boosts go by the real
// author, anonymous or not.
func Score(ep *engagement.EnrichedPost, viewerId string, followed map[string]bool, now time.Time) float64 {
	score := float64(EngagementScore(ep.Counts))*0.4 + RecencyDecay(now.Sub(ep.Created))*10
	if followed[ep.AuthorId()] {
		score += followBoost
	}
	if viewerId != "" && ep.AuthorId() == viewerId {
		score += ownBoost
	}
	if ep.IsAnonymous {
		score += anonymousBoost
	}
	return score
}
