package engagement

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/user"
)

type (
	PostStore interface {
		GetByIds(context.Context, []post.PostId) (map[post.PostId]*post.Post, error)
		RepostCounts(context.Context, []post.PostId) (map[post.PostId]int, error)
		RepostedBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error)
	}

	UserStore interface {
		GetAuthors(context.Context, []string) (map[string]*user.Author, error)
		ExistsById(context.Context, string) (bool, error)
	}

	CommentCounter interface {
		CommentCounts(context.Context, []post.PostId) (map[post.PostId]int, error)
	}

	Store interface {
		LikeCounts(context.Context, []post.PostId) (map[post.PostId]int, error)
		ReactionTallies(context.Context, []post.PostId) (map[post.PostId]reaction.Tally, error)
		LikedBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error)
		BookmarkedBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error)
		ReactionsBy(ctx context.Context, userId string, ids []post.PostId) (map[post.PostId]reaction.Kind, error)
	}
)

// Aggregator turns stored posts into EnrichedPosts. Every signal is read
// with a single query for the whole batch and the queries run
// concurrently.
type Aggregator struct {
	posts    PostStore
	users    UserStore
	comments CommentCounter
	store    Store
}

func NewAggregator(ps PostStore, us UserStore, cc CommentCounter, s Store) *Aggregator {
	return &Aggregator{
		posts:    ps,
		users:    us,
		comments: cc,
		store:    s,
	}
}

// Enrich enriches a single post. An empty viewerId means no viewer.
func (a *Aggregator) Enrich(ctx context.Context, p *post.Post, viewerId string) (*EnrichedPost, error) {
	enriched, err := a.EnrichMany(ctx, []*post.Post{p}, viewerId)
	if err != nil {
		return nil, err
	}
	return enriched[0], nil
}

// EnrichMany enriches posts keeping their order. Reposts get their original
// attached, resolved one level deep: the attached original never carries an
// original of its own.
func (a *Aggregator) EnrichMany(ctx context.Context, posts []*post.Post, viewerId string) ([]*EnrichedPost, error) {
	out := make([]*EnrichedPost, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	var originals map[post.PostId]*post.Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		viewerId, err = a.resolveViewer(gctx, viewerId)
		return err
	})
	g.Go(func() error {
		var err error
		originals, err = a.posts.GetByIds(gctx, originalIds(posts))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]*post.Post, 0, len(posts)+len(originals))
	all = append(all, posts...)
	for _, o := range originals {
		all = append(all, o)
	}

	b, err := a.load(ctx, all, viewerId)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		ep := b.enrich(p)
		if p.IsRepost() {
			if o, ok := originals[p.OriginalPostId]; ok {
				ep.OriginalPost = b.enrich(o)
			}
		}
		out = append(out, ep)
	}
	return out, nil
}

// Counts returns engagement counts only, without authors or viewer state.
func (a *Aggregator) Counts(ctx context.Context, ids []post.PostId) (map[post.PostId]Counts, error) {
	b := new(batch)
	g, gctx := errgroup.WithContext(ctx)
	a.loadCounts(gctx, g, b, ids)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[post.PostId]Counts, len(ids))
	for _, id := range ids {
		counts[id] = b.counts(id)
	}
	return counts, nil
}

// resolveViewer drops viewer ids that no longer belong to a user.
func (a *Aggregator) resolveViewer(ctx context.Context, viewerId string) (string, error) {
	if viewerId == "" {
		return "", nil
	}
	exists, err := a.users.ExistsById(ctx, viewerId)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}
	return viewerId, nil
}

type batch struct {
	authors    map[string]*user.Author
	likes      map[post.PostId]int
	comments   map[post.PostId]int
	reposts    map[post.PostId]int
	tallies    map[post.PostId]reaction.Tally
	liked      map[post.PostId]bool
	reposted   map[post.PostId]bool
	bookmarked map[post.PostId]bool
	reactions  map[post.PostId]reaction.Kind
}

func (a *Aggregator) load(ctx context.Context, posts []*post.Post, viewerId string) (*batch, error) {
	ids := post.Ids(posts)
	b := new(batch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.authors, err = a.users.GetAuthors(gctx, authorIds(posts))
		return err
	})
	a.loadCounts(gctx, g, b, ids)
	if viewerId != "" {
		g.Go(func() (err error) {
			b.liked, err = a.store.LikedBy(gctx, viewerId, ids)
			return err
		})
		g.Go(func() (err error) {
			b.reposted, err = a.posts.RepostedBy(gctx, viewerId, ids)
			return err
		})
		g.Go(func() (err error) {
			b.bookmarked, err = a.store.BookmarkedBy(gctx, viewerId, ids)
			return err
		})
		g.Go(func() (err error) {
			b.reactions, err = a.store.ReactionsBy(gctx, viewerId, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

func (a *Aggregator) loadCounts(ctx context.Context, g *errgroup.Group, b *batch, ids []post.PostId) {
	g.Go(func() (err error) {
		b.likes, err = a.store.LikeCounts(ctx, ids)
		return err
	})
	g.Go(func() (err error) {
		b.comments, err = a.comments.CommentCounts(ctx, ids)
		return err
	})
	g.Go(func() (err error) {
		b.reposts, err = a.posts.RepostCounts(ctx, ids)
		return err
	})
	g.Go(func() (err error) {
		b.tallies, err = a.store.ReactionTallies(ctx, ids)
		return err
	})
}

func (b *batch) counts(id post.PostId) Counts {
	tally := reaction.NewTally()
	for k, n := range b.tallies[id] {
		tally.Add(k, n)
	}
	return Counts{
		Likes:     b.likes[id],
		Comments:  b.comments[id],
		Reposts:   b.reposts[id],
		Reactions: tally,
	}
}

func (b *batch) enrich(p *post.Post) *EnrichedPost {
	ep := &EnrichedPost{
		Id:             p.Id,
		Content:        p.Content,
		IsAnonymous:    p.IsAnonymous,
		Category:       p.Category,
		OriginalPostId: p.OriginalPostId,
		Created:        p.Created,
		Counts:         b.counts(p.Id),
		authorId:       p.AuthorId,
	}
	if !p.IsAnonymous {
		ep.Author = b.authors[p.AuthorId]
	}

	ep.IsLiked = b.liked[p.Id]
	ep.IsReposted = b.reposted[p.Id]
	ep.IsBookmarked = b.bookmarked[p.Id]
	if k, ok := b.reactions[p.Id]; ok {
		ep.UserReaction = &k
	}
	return ep
}

func originalIds(posts []*post.Post) []post.PostId {
	seen := make(map[post.PostId]bool)
	ids := []post.PostId{}
	for _, p := range posts {
		if p.IsRepost() && !seen[p.OriginalPostId] {
			seen[p.OriginalPostId] = true
			ids = append(ids, p.OriginalPostId)
		}
	}
	return ids
}

// authorIds skips anonymous posts, their authors are never loaded.
func authorIds(posts []*post.Post) []string {
	seen := make(map[string]bool)
	ids := []string{}
	for _, p := range posts {
		if p.IsAnonymous || seen[p.AuthorId] {
			continue
		}
		seen[p.AuthorId] = true
		ids = append(ids, p.AuthorId)
	}
	return ids
}
