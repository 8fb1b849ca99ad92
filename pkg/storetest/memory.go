// Package storetest keeps posts, users and engagement in memory. It is
// used by tests of the packages that read through the stores.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ruangluka/pkg/comment"
	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/user"
)

type Store struct {
	mu sync.Mutex

	posts     map[post.PostId]*post.Post
	users     map[string]*user.User
	follows   map[string]map[string]bool
	likes     map[post.PostId]map[string]bool
	reactions map[post.PostId]map[string]reaction.Kind
	bookmarks map[post.PostId]map[string]time.Time
	comments  map[post.PostId][]*comment.Comment

	calls map[string]int
	fail  error
	Now   func() time.Time
}

func New() *Store {
	return &Store{
		posts:     make(map[post.PostId]*post.Post),
		users:     make(map[string]*user.User),
		follows:   make(map[string]map[string]bool),
		likes:     make(map[post.PostId]map[string]bool),
		reactions: make(map[post.PostId]map[string]reaction.Kind),
		bookmarks: make(map[post.PostId]map[string]time.Time),
		comments:  make(map[post.PostId][]*comment.Comment),
		calls:     make(map[string]int),
		Now:       time.Now,
	}
}

type (
	Posts      struct{ *Store }
	Users      struct{ *Store }
	Comments   struct{ *Store }
	Engagement struct{ *Store }
)

func (s *Store) Posts() Posts           { return Posts{s} }
func (s *Store) Users() Users           { return Users{s} }
func (s *Store) Comments() Comments     { return Comments{s} }
func (s *Store) Engagement() Engagement { return Engagement{s} }

// FailWith makes every following call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Calls reports how many times the named method was called.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// enter locks the store and records the call. Callers must unlock.
func (s *Store) enter(method string) error {
	s.mu.Lock()
	s.calls[method]++
	return s.fail
}

func (s *Store) AddUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Id] = u
}

func (s *Store) AddPost(p *post.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.Id] = p
}

func (s *Store) Follow(followerId, followingId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.follows[followerId] == nil {
		s.follows[followerId] = make(map[string]bool)
	}
	s.follows[followerId][followingId] = true
}

func (s *Store) Like(postId post.PostId, userIds ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range userIds {
		if s.likes[postId] == nil {
			s.likes[postId] = make(map[string]bool)
		}
		s.likes[postId][uid] = true
	}
}

// Comment adds n comments by userId.
func (s *Store) Comment(postId post.PostId, userId string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.comments[postId] = append(s.comments[postId], &comment.Comment{
			Id:      comment.CommentId(strings.Repeat("c", i+1)),
			PostId:  postId,
			Author:  &user.Author{Id: userId},
			Body:    "curhat",
			Created: s.Now(),
		})
	}
}

// Posts

func (ps Posts) Add(_ context.Context, p *post.Post) (post.PostId, error) {
	err := ps.enter("Add")
	defer ps.mu.Unlock()
	if err != nil {
		return "", err
	}
	ps.posts[p.Id] = p
	return p.Id, nil
}

func (ps Posts) GetById(_ context.Context, id post.PostId) (*post.Post, error) {
	err := ps.enter("GetById")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := ps.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	return p, nil
}

func (ps Posts) GetByIds(_ context.Context, ids []post.PostId) (map[post.PostId]*post.Post, error) {
	err := ps.enter("GetByIds")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	found := make(map[post.PostId]*post.Post)
	for _, id := range ids {
		if p, ok := ps.posts[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (ps Posts) Recent(_ context.Context, limit int) ([]*post.Post, error) {
	err := ps.enter("Recent")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	posts := ps.sorted(func(*post.Post) bool { return true })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (ps Posts) Since(_ context.Context, t time.Time) ([]*post.Post, error) {
	err := ps.enter("Since")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ps.sorted(func(p *post.Post) bool {
		return p.Category != "" && !p.Created.Before(t)
	}), nil
}

func (ps Posts) GetUserPosts(_ context.Context, authorId string) ([]*post.Post, error) {
	err := ps.enter("GetUserPosts")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ps.sorted(func(p *post.Post) bool {
		return p.AuthorId == authorId && !p.IsAnonymous
	}), nil
}

func (ps Posts) Search(_ context.Context, query string, limit int) ([]*post.Post, error) {
	err := ps.enter("Search")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	posts := ps.sorted(func(p *post.Post) bool {
		return strings.Contains(strings.ToLower(p.Content), q)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (ps Posts) Delete(_ context.Context, id post.PostId) ([]post.PostId, error) {
	err := ps.enter("Delete")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	removed := []post.PostId{id}
	delete(ps.posts, id)
	for pid, p := range ps.posts {
		if p.OriginalPostId == id {
			removed = append(removed, pid)
			delete(ps.posts, pid)
		}
	}
	return removed, nil
}

func (ps Posts) Repost(_ context.Context, authorId string, originalId post.PostId) (*post.Post, error) {
	err := ps.enter("Repost")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	original, ok := ps.posts[originalId]
	if ok && original.IsRepost() {
		original, ok = ps.posts[original.OriginalPostId]
	}
	if !ok {
		return nil, post.ErrNotFound
	}
	for _, p := range ps.posts {
		if p.AuthorId == authorId && p.OriginalPostId == original.Id {
			return nil, post.ErrAlreadyReposted
		}
	}
	repost := &post.Post{
		Id:             post.PostId("repost-" + authorId + "-" + string(original.Id)),
		AuthorId:       authorId,
		Content:        original.Content,
		OriginalPostId: original.Id,
		Created:        ps.Now(),
	}
	ps.posts[repost.Id] = repost
	return repost, nil
}

func (ps Posts) RepostCounts(_ context.Context, ids []post.PostId) (map[post.PostId]int, error) {
	err := ps.enter("RepostCounts")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	want := idSet(ids)
	counts := make(map[post.PostId]int)
	for _, p := range ps.posts {
		if p.IsRepost() && want[p.OriginalPostId] {
			counts[p.OriginalPostId]++
		}
	}
	return counts, nil
}

func (ps Posts) RepostedBy(_ context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	err := ps.enter("RepostedBy")
	defer ps.mu.Unlock()
	if err != nil {
		return nil, err
	}
	want := idSet(ids)
	reposted := make(map[post.PostId]bool)
	for _, p := range ps.posts {
		if p.AuthorId == userId && want[p.OriginalPostId] {
			reposted[p.OriginalPostId] = true
		}
	}
	return reposted, nil
}

// sorted returns matching posts newest first, ties by id descending.
func (ps Posts) sorted(match func(*post.Post) bool) []*post.Post {
	posts := []*post.Post{}
	for _, p := range ps.posts {
		if match(p) {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Created.Equal(posts[j].Created) {
			return posts[i].Created.After(posts[j].Created)
		}
		return posts[i].Id > posts[j].Id
	})
	return posts
}

// Users

func (us Users) GetById(_ context.Context, id string) (*user.User, error) {
	err := us.enter("GetById")
	defer us.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := us.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (us Users) GetByUsername(_ context.Context, username string) (*user.User, error) {
	err := us.enter("GetByUsername")
	defer us.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range us.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (us Users) Search(_ context.Context, query string, limit int) ([]*user.Author, error) {
	err := us.enter("Users.Search")
	defer us.mu.Unlock()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	found := []*user.Author{}
	for _, u := range us.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			found = append(found, u.Author())
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Username < found[j].Username })
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (us Users) ExistsById(_ context.Context, id string) (bool, error) {
	err := us.enter("ExistsById")
	defer us.mu.Unlock()
	if err != nil {
		return false, err
	}
	_, ok := us.users[id]
	return ok, nil
}

func (us Users) GetAuthors(_ context.Context, ids []string) (map[string]*user.Author, error) {
	err := us.enter("GetAuthors")
	defer us.mu.Unlock()
	if err != nil {
		return nil, err
	}
	authors := make(map[string]*user.Author)
	for _, id := range ids {
		if u, ok := us.users[id]; ok {
			authors[id] = u.Author()
		}
	}
	return authors, nil
}

func (us Users) FollowingIds(_ context.Context, id string) ([]string, error) {
	err := us.enter("FollowingIds")
	defer us.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for fid := range us.follows[id] {
		ids = append(ids, fid)
	}
	sort.Strings(ids)
	return ids, nil
}

// Comments

func (cs Comments) AddComment(_ context.Context, postId post.PostId, author *user.User, body string) (*comment.Comment, error) {
	err := cs.enter("AddComment")
	defer cs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := &comment.Comment{
		Id:      comment.CommentId(strings.Repeat("c", len(cs.comments[postId])+1)),
		PostId:  postId,
		Author:  author.Author(),
		Body:    body,
		Created: cs.Now(),
	}
	cs.comments[postId] = append(cs.comments[postId], c)
	return c, nil
}

func (cs Comments) PostComments(_ context.Context, postId post.PostId) ([]*comment.Comment, error) {
	err := cs.enter("PostComments")
	defer cs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return append([]*comment.Comment{}, cs.comments[postId]...), nil
}

func (cs Comments) CommentCounts(_ context.Context, ids []post.PostId) (map[post.PostId]int, error) {
	err := cs.enter("CommentCounts")
	defer cs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	counts := make(map[post.PostId]int)
	for _, id := range ids {
		if n := len(cs.comments[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (cs Comments) DeletePostComments(_ context.Context, ids []post.PostId) error {
	err := cs.enter("DeletePostComments")
	defer cs.mu.Unlock()
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(cs.comments, id)
	}
	return nil
}

// Engagement

func (es Engagement) LikeCounts(_ context.Context, ids []post.PostId) (map[post.PostId]int, error) {
	err := es.enter("LikeCounts")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	counts := make(map[post.PostId]int)
	for _, id := range ids {
		if n := len(es.likes[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (es Engagement) ReactionTallies(_ context.Context, ids []post.PostId) (map[post.PostId]reaction.Tally, error) {
	err := es.enter("ReactionTallies")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tallies := make(map[post.PostId]reaction.Tally)
	for _, id := range ids {
		t := reaction.NewTally()
		for _, k := range es.reactions[id] {
			t.Add(k, 1)
		}
		tallies[id] = t
	}
	return tallies, nil
}

func (es Engagement) LikedBy(_ context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	err := es.enter("LikedBy")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	liked := make(map[post.PostId]bool)
	for _, id := range ids {
		if es.likes[id][userId] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (es Engagement) BookmarkedBy(_ context.Context, userId string, ids []post.PostId) (map[post.PostId]bool, error) {
	err := es.enter("BookmarkedBy")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	marked := make(map[post.PostId]bool)
	for _, id := range ids {
		if _, ok := es.bookmarks[id][userId]; ok {
			marked[id] = true
		}
	}
	return marked, nil
}

func (es Engagement) ReactionsBy(_ context.Context, userId string, ids []post.PostId) (map[post.PostId]reaction.Kind, error) {
	err := es.enter("ReactionsBy")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	kinds := make(map[post.PostId]reaction.Kind)
	for _, id := range ids {
		if k, ok := es.reactions[id][userId]; ok {
			kinds[id] = k
		}
	}
	return kinds, nil
}

func (es Engagement) ToggleLike(_ context.Context, postId post.PostId, userId string) (bool, error) {
	err := es.enter("ToggleLike")
	defer es.mu.Unlock()
	if err != nil {
		return false, err
	}
	if es.likes[postId][userId] {
		delete(es.likes[postId], userId)
		return false, nil
	}
	if es.likes[postId] == nil {
		es.likes[postId] = make(map[string]bool)
	}
	es.likes[postId][userId] = true
	return true, nil
}

func (es Engagement) ToggleBookmark(_ context.Context, postId post.PostId, userId string) (bool, error) {
	err := es.enter("ToggleBookmark")
	defer es.mu.Unlock()
	if err != nil {
		return false, err
	}
	if _, ok := es.bookmarks[postId][userId]; ok {
		delete(es.bookmarks[postId], userId)
		return false, nil
	}
	if es.bookmarks[postId] == nil {
		es.bookmarks[postId] = make(map[string]time.Time)
	}
	es.bookmarks[postId][userId] = es.Now()
	return true, nil
}

func (es Engagement) SetReaction(_ context.Context, postId post.PostId, userId string, kind reaction.Kind) error {
	err := es.enter("SetReaction")
	defer es.mu.Unlock()
	if err != nil {
		return err
	}
	if es.reactions[postId] == nil {
		es.reactions[postId] = make(map[string]reaction.Kind)
	}
	es.reactions[postId][userId] = kind
	return nil
}

func (es Engagement) RemoveReaction(_ context.Context, postId post.PostId, userId string) error {
	err := es.enter("RemoveReaction")
	defer es.mu.Unlock()
	if err != nil {
		return err
	}
	delete(es.reactions[postId], userId)
	return nil
}

func (es Engagement) BookmarkedPostIds(_ context.Context, userId string) ([]post.PostId, error) {
	err := es.enter("BookmarkedPostIds")
	defer es.mu.Unlock()
	if err != nil {
		return nil, err
	}
	type mark struct {
		id post.PostId
		at time.Time
	}
	marks := []mark{}
	for id, users := range es.bookmarks {
		if at, ok := users[userId]; ok {
			marks = append(marks, mark{id, at})
		}
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].at.After(marks[j].at) })
	ids := []post.PostId{}
	for _, m := range marks {
		ids = append(ids, m.id)
	}
	return ids, nil
}

func (es Engagement) DeleteEngagement(_ context.Context, ids []post.PostId) error {
	err := es.enter("DeleteEngagement")
	defer es.mu.Unlock()
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(es.likes, id)
		delete(es.reactions, id)
		delete(es.bookmarks, id)
	}
	return nil
}

func idSet(ids []post.PostId) map[post.PostId]bool {
	set := make(map[post.PostId]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
