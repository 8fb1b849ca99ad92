package feed

import (
	"context"
	"sort"
	"time"

	"ruangluka/pkg/engagement"
	"ruangluka/pkg/post"
)

const (
	TrendingWindow  = 168 * time.Hour
	TrendingSample  = 20
	TrendingTopicsN = 10
)

type (
	WindowSource interface {
		Since(ctx context.Context, t time.Time) ([]*post.Post, error)
	}

	EngagementCounter interface {
		Counts(ctx context.Context, ids []post.PostId) (map[post.PostId]engagement.Counts, error)
	}
)

type TrendingTopic struct {
	Category        string `json:"category"`
	PostCount       int    `json:"postCount"`
	EngagementScore int    `json:"engagementScore"`
}

type Trending struct {
	posts   WindowSource
	counter EngagementCounter
	now     func() time.Time
}

func NewTrending(ws WindowSource, ec EngagementCounter) *Trending {
	return &Trending{
		posts:   ws,
		counter: ec,
		now:     time.Now,
	}
}

// Topics ranks the categories posted to within TrendingWindow. Engagement is
// sampled from the TrendingSample newest posts of each category.
func (t *Trending) Topics(ctx context.Context) ([]TrendingTopic, error) {
	posts, err := t.posts.Since(ctx, t.now().Add(-TrendingWindow))
	if err != nil {
		return nil, err
	}

	order := []string{}
	byCategory := make(map[string][]*post.Post)
	for _, p := range posts {
		if p.Category == "" {
			continue
		}
		if _, ok := byCategory[p.Category]; !ok {
			order = append(order, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	sampled := []post.PostId{}
	for _, cat := range order {
		catPosts := byCategory[cat]
		sortNewestFirst(catPosts)
		if len(catPosts) > TrendingSample {
			catPosts = catPosts[:TrendingSample]
		}
		sampled = append(sampled, post.Ids(catPosts)...)
	}

	counts := map[post.PostId]engagement.Counts{}
	if len(sampled) > 0 {
		if counts, err = t.counter.Counts(ctx, sampled); err != nil {
			return nil, err
		}
	}

	topics := make([]TrendingTopic, 0, len(order))
	for _, cat := range order {
		catPosts := byCategory[cat]
		topic := TrendingTopic{
			Category:        cat,
			PostCount:       len(catPosts),
			EngagementScore: len(catPosts),
		}
		if len(catPosts) > TrendingSample {
			catPosts = catPosts[:TrendingSample]
		}
		for _, p := range catPosts {
			c := counts[p.Id]
			topic.EngagementScore += c.Likes + 2*c.Comments + c.Reactions.Total()
		}
		topics = append(topics, topic)
	}

	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if a.EngagementScore != b.EngagementScore {
			return a.EngagementScore > b.EngagementScore
		}
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return a.Category < b.Category
	})
	if len(topics) > TrendingTopicsN {
		topics = topics[:TrendingTopicsN]
	}
	return topics, nil
}

func sortNewestFirst(posts []*post.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Created.Equal(posts[j].Created) {
			return posts[i].Created.After(posts[j].Created)
		}
		return posts[i].Id > posts[j].Id
	})
}
