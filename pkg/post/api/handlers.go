package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"ruangluka/pkg/comment"
	. "ruangluka/pkg/common"
	"ruangluka/pkg/engagement"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/notification"
	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/sessions"
	"ruangluka/pkg/user"
)

const (
	listLimit   = 50
	searchLimit = 10
)

type (
	IPostRepo interface {
		Add(context.Context, *post.Post) (post.PostId, error)
		GetById(context.Context, post.PostId) (*post.Post, error)
		GetByIds(context.Context, []post.PostId) (map[post.PostId]*post.Post, error)
		Recent(context.Context, int) ([]*post.Post, error)
		GetUserPosts(context.Context, string) ([]*post.Post, error)
		Search(context.Context, string, int) ([]*post.Post, error)
		Delete(context.Context, post.PostId) ([]post.PostId, error)
		Repost(ctx context.Context, authorId string, originalId post.PostId) (*post.Post, error)
	}

	IUserRepo interface {
		GetByUsername(context.Context, string) (*user.User, error)
		Search(ctx context.Context, query string, limit int) ([]*user.Author, error)
	}

	ICommentRepo interface {
		AddComment(context.Context, post.PostId, *user.User, string) (*comment.Comment, error)
		PostComments(context.Context, post.PostId) ([]*comment.Comment, error)
		DeletePostComments(context.Context, []post.PostId) error
	}

	IEngagementRepo interface {
		ToggleLike(ctx context.Context, postId post.PostId, userId string) (bool, error)
		ToggleBookmark(ctx context.Context, postId post.PostId, userId string) (bool, error)
		SetReaction(ctx context.Context, postId post.PostId, userId string, kind reaction.Kind) error
		RemoveReaction(ctx context.Context, postId post.PostId, userId string) error
		BookmarkedPostIds(ctx context.Context, userId string) ([]post.PostId, error)
		DeleteEngagement(context.Context, []post.PostId) error
	}

	IEnricher interface {
		Enrich(ctx context.Context, p *post.Post, viewerId string) (*engagement.EnrichedPost, error)
		EnrichMany(ctx context.Context, posts []*post.Post, viewerId string) ([]*engagement.EnrichedPost, error)
	}

	INotifier interface {
		Notify(context.Context, *notification.Notification) error
	}
)

type PostHandler struct {
	Posts      IPostRepo
	Users      IUserRepo
	Comments   ICommentRepo
	Engagement IEngagementRepo
	Enricher   IEnricher
	Notifier   INotifier
	now        func() time.Time
}

func NewPostHandler(ps IPostRepo, us IUserRepo, cs ICommentRepo, es IEngagementRepo, e IEnricher, n INotifier) *PostHandler {
	return &PostHandler{
		Posts:      ps,
		Users:      us,
		Comments:   cs,
		Engagement: es,
		Enricher:   e,
		Notifier:   n,
		now:        time.Now,
	}
}

type HttpPost struct {
	Content     string `json:"content"`
	IsAnonymous bool   `json:"isAnonymous"`
	Category    string `json:"category"`
}

func (ph *PostHandler) Explore(w http.ResponseWriter, r *http.Request) {
	posts, err := ph.Posts.Recent(r.Context(), listLimit)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load recent posts: %v", err)
		WriteMsg(w, "failed loading posts", http.StatusInternalServerError)
		return
	}
	ph.writeEnriched(w, r, posts)
}

func (ph *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := ph.loadPost(w, r)
	if !ok {
		return
	}

	enriched, err := ph.Enricher.Enrich(r.Context(), p, sessions.ViewerId(r.Context()))
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't enrich post %s: %v", p.Id, err)
		WriteMsg(w, "failed loading post", http.StatusInternalServerError)
		return
	}
	WriteRespJSON(w, enriched)
}

func (ph *PostHandler) GetByUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	author, err := ph.Users.GetByUsername(r.Context(), username)
	if errors.Is(err, user.ErrNotFound) {
		WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load user `%s`: %v", username, err)
		WriteMsg(w, "failed loading user posts", http.StatusInternalServerError)
		return
	}

	posts, err := ph.Posts.GetUserPosts(r.Context(), author.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load posts of `%s`: %v", username, err)
		WriteMsg(w, "failed loading user posts", http.StatusInternalServerError)
		return
	}
	ph.writeEnriched(w, r, posts)
}

type SearchResult struct {
	Users []*user.Author             `json:"users"`
	Posts []*engagement.EnrichedPost `json:"posts"`
}

// Search looks up users and posts matching q at once.
func (ph *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if Blank(q) {
		WriteMsg(w, "query is empty", http.StatusBadRequest)
		return
	}

	var (
		users []*user.Author
		posts []*post.Post
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		users, err = ph.Users.Search(ctx, q, searchLimit)
		return err
	})
	g.Go(func() (err error) {
		posts, err = ph.Posts.Search(ctx, q, searchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: search for %q failed: %v", q, err)
		WriteMsg(w, "search failed", http.StatusInternalServerError)
		return
	}

	enriched, err := ph.Enricher.EnrichMany(r.Context(), posts, sessions.ViewerId(r.Context()))
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't enrich search results: %v", err)
		WriteMsg(w, "search failed", http.StatusInternalServerError)
		return
	}
	WriteRespJSON(w, SearchResult{Users: users, Posts: enriched})
}

func (ph *PostHandler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	viewer, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ids, err := ph.Engagement.BookmarkedPostIds(r.Context(), viewer.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load bookmarks: %v", err)
		WriteMsg(w, "failed loading bookmarks", http.StatusInternalServerError)
		return
	}
	found, err := ph.Posts.GetByIds(r.Context(), ids)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load bookmarked posts: %v", err)
		WriteMsg(w, "failed loading bookmarks", http.StatusInternalServerError)
		return
	}

	posts := make([]*post.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			posts = append(posts, p)
		}
	}
	ph.writeEnriched(w, r, posts)
}

func (ph *PostHandler) Add(w http.ResponseWriter, r *http.Request) {
	author, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	hp := new(HttpPost)
	if err := ParseReqBody(r.Body, hp); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't parse post from request body: %v", err)
		WriteMsg(w, "can't parse post", http.StatusBadRequest)
		return
	}

	p, err := post.New(author.Id, hp.Content, hp.IsAnonymous, hp.Category, ph.now())
	if err != nil {
		WriteMsg(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := ph.Posts.Add(r.Context(), p); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't add post: %v", err)
		WriteMsg(w, "failed adding post", http.StatusInternalServerError)
		return
	}

	ph.writeCreated(w, r, p, author.Id)
}

func (ph *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authUser, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, ok := ph.loadPost(w, r)
	if !ok {
		return
	}
	if p.AuthorId != authUser.Id && !authUser.IsAdmin {
		WriteMsg(w, "only the author can remove the post", http.StatusForbidden)
		return
	}

	removed, err := ph.Posts.Delete(r.Context(), p.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't remove post %s: %v", p.Id, err)
		WriteMsg(w, "removing post failed", http.StatusInternalServerError)
		return
	}
	// Posts and their engagement live in different stores, so the post is
	// already gone here. Orphaned rows are only logged and never counted
	// since nothing can reach them by post id anymore.
	if err := ph.Comments.DeletePostComments(r.Context(), removed); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't remove comments of %v: %v", removed, err)
	}
	if err := ph.Engagement.DeleteEngagement(r.Context(), removed); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't remove engagement of %v: %v", removed, err)
	}

	WriteMsg(w, "success", http.StatusOK)
}

func (ph *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	viewer, p, ok := ph.authAndPost(w, r)
	if !ok {
		return
	}

	liked, err := ph.Engagement.ToggleLike(r.Context(), p.Id, viewer.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't like post %s: %v", p.Id, err)
		WriteMsg(w, "like failed", http.StatusInternalServerError)
		return
	}
	if liked {
		ph.notify(r.Context(), p.AuthorId, viewer.Id, notification.KindLike, p.Id)
	}

	WriteRespJSON(w, struct {
		Liked bool `json:"liked"`
	}{liked})
}

func (ph *PostHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	viewer, p, ok := ph.authAndPost(w, r)
	if !ok {
		return
	}

	bookmarked, err := ph.Engagement.ToggleBookmark(r.Context(), p.Id, viewer.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't bookmark post %s: %v", p.Id, err)
		WriteMsg(w, "bookmark failed", http.StatusInternalServerError)
		return
	}

	WriteRespJSON(w, struct {
		Bookmarked bool `json:"bookmarked"`
	}{bookmarked})
}

func (ph *PostHandler) Repost(w http.ResponseWriter, r *http.Request) {
	viewer, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	repost, err := ph.Posts.Repost(r.Context(), viewer.Id, post.PostId(mux.Vars(r)["post_id"]))
	switch {
	case errors.Is(err, post.ErrNotFound):
		WriteMsg(w, "post not found", http.StatusNotFound)
		return
	case errors.Is(err, post.ErrAlreadyReposted):
		WriteMsg(w, "already reposted", http.StatusConflict)
		return
	case err != nil:
		logger.Log(r.Context()).Errorf("post/handlers: repost failed: %v", err)
		WriteMsg(w, "repost failed", http.StatusInternalServerError)
		return
	}

	if original, err := ph.Posts.GetById(r.Context(), repost.OriginalPostId); err == nil {
		ph.notify(r.Context(), original.AuthorId, viewer.Id, notification.KindRepost, original.Id)
	}

	ph.writeCreated(w, r, repost, viewer.Id)
}

type httpReaction struct {
	Kind string `json:"kind"`
}

func (ph *PostHandler) React(w http.ResponseWriter, r *http.Request) {
	hr := new(httpReaction)
	if err := ParseReqBody(r.Body, hr); err != nil {
		WriteMsg(w, "can't parse reaction", http.StatusBadRequest)
		return
	}
	kind, err := reaction.ParseKind(hr.Kind)
	if err != nil {
		WriteMsg(w, err.Error(), http.StatusBadRequest)
		return
	}

	viewer, p, ok := ph.authAndPost(w, r)
	if !ok {
		return
	}

	if err := ph.Engagement.SetReaction(r.Context(), p.Id, viewer.Id, kind); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't react to post %s: %v", p.Id, err)
		WriteMsg(w, "reaction failed", http.StatusInternalServerError)
		return
	}
	ph.notify(r.Context(), p.AuthorId, viewer.Id, notification.KindReaction, p.Id)

	WriteRespJSON(w, struct {
		Reaction reaction.Kind `json:"reaction"`
	}{kind})
}

func (ph *PostHandler) Unreact(w http.ResponseWriter, r *http.Request) {
	viewer, p, ok := ph.authAndPost(w, r)
	if !ok {
		return
	}

	if err := ph.Engagement.RemoveReaction(r.Context(), p.Id, viewer.Id); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't remove reaction on %s: %v", p.Id, err)
		WriteMsg(w, "removing reaction failed", http.StatusInternalServerError)
		return
	}

	WriteMsg(w, "success", http.StatusOK)
}

func (ph *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	p, ok := ph.loadPost(w, r)
	if !ok {
		return
	}

	comments, err := ph.Comments.PostComments(r.Context(), p.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't load comments of %s: %v", p.Id, err)
		WriteMsg(w, "failed loading comments", http.StatusInternalServerError)
		return
	}

	WriteRespJSON(w, comments)
}

func (ph *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	c := struct {
		Content string `json:"content"`
	}{}
	if err := ParseReqBody(r.Body, &c); err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't get comment body: %v", err)
		WriteMsg(w, "failed parsing comment body", http.StatusBadRequest)
		return
	}
	if Blank(c.Content) {
		WriteMsg(w, "comment is empty", http.StatusBadRequest)
		return
	}

	commenter, p, ok := ph.authAndPost(w, r)
	if !ok {
		return
	}

	added, err := ph.Comments.AddComment(r.Context(), p.Id, commenter, c.Content)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't add comment to %s: %v", p.Id, err)
		WriteMsg(w, "failed adding comment", http.StatusInternalServerError)
		return
	}
	ph.notify(r.Context(), p.AuthorId, commenter.Id, notification.KindComment, p.Id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	WriteRespJSON(w, added)
}

// loadPost answers 404 or 500 itself when the post can't be loaded.
func (ph *PostHandler) loadPost(w http.ResponseWriter, r *http.Request) (*post.Post, bool) {
	postId := post.PostId(mux.Vars(r)["post_id"])

	p, err := ph.Posts.GetById(r.Context(), postId)
	if errors.Is(err, post.ErrNotFound) {
		WriteMsg(w, "post not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't get post with id %s: %v", postId, err)
		WriteMsg(w, "failed loading post", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

func (ph *PostHandler) authAndPost(w http.ResponseWriter, r *http.Request) (*user.User, *post.Post, bool) {
	viewer, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}
	p, ok := ph.loadPost(w, r)
	return viewer, p, ok
}

func (ph *PostHandler) writeEnriched(w http.ResponseWriter, r *http.Request, posts []*post.Post) {
	enriched, err := ph.Enricher.EnrichMany(r.Context(), posts, sessions.ViewerId(r.Context()))
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't enrich posts: %v", err)
		WriteMsg(w, "failed loading posts", http.StatusInternalServerError)
		return
	}
	WriteRespJSON(w, enriched)
}

func (ph *PostHandler) writeCreated(w http.ResponseWriter, r *http.Request, p *post.Post, viewerId string) {
	enriched, err := ph.Enricher.Enrich(r.Context(), p, viewerId)
	if err != nil {
		logger.Log(r.Context()).Errorf("post/handlers: can't enrich new post %s: %v", p.Id, err)
		WriteMsg(w, "post saved, loading it failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	WriteRespJSON(w, enriched)
}

// notify is best effort, a failed notification never fails the request.
func (ph *PostHandler) notify(ctx context.Context, to, actor string, kind notification.Kind, postId post.PostId) {
	n := &notification.Notification{
		UserId:  to,
		ActorId: actor,
		Kind:    kind,
		PostId:  string(postId),
	}
	if err := ph.Notifier.Notify(ctx, n); err != nil {
		logger.Log(ctx).Errorf("post/handlers: can't notify user %s: %v", to, err)
	}
}
