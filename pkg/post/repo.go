package post

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Newest first, ties broken by id so paging through equal timestamps is stable.
var recentFirst = bson.D{{Key: "created", Value: -1}, {Key: "id", Value: -1}}

type Repo struct {
	posts IMongoCollection
	now   func() time.Time
}

func NewPostRepo(postsCol *mongo.Collection) *Repo {
	posts := &MongoCollection{
		Coll: postsCol,
	}
	return &Repo{
		posts: posts,
		now:   time.Now,
	}
}

func (r *Repo) Add(ctx context.Context, p *Post) (PostId, error) {
	_, err := r.posts.InsertOne(ctx, p)
	if err != nil {
		return PostId(``), fmt.Errorf("post/repo: failed inserting a post: %w", err)
	}
	return PostId(p.Id), nil
}

func (r *Repo) GetById(ctx context.Context, id PostId) (*Post, error) {
	post := new(Post)
	err := r.posts.FindOne(ctx, bson.M{"id": id}).Decode(post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed loading post %s: %w", id, err)
	}
	return post, nil
}

// GetByIds returns the posts found, keyed by id.
func (r *Repo) GetByIds(ctx context.Context, ids []PostId) (map[PostId]*Post, error) {
	found := make(map[PostId]*Post, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	posts, err := r.find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		found[p.Id] = p
	}
	return found, nil
}

// Recent returns the newest posts system-wide.
func (r *Repo) Recent(ctx context.Context, limit int) ([]*Post, error) {
	opts := options.Find().SetSort(recentFirst).SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

// Since returns categorized posts created at or after t, newest first.
func (r *Repo) Since(ctx context.Context, t time.Time) ([]*Post, error) {
	filter := bson.M{
		"created":  bson.M{"$gte": t},
		"category": bson.M{"$nin": bson.A{nil, ""}},
	}
	return r.find(ctx, filter, options.Find().SetSort(recentFirst))
}

// GetUserPosts lists the author's posts, anonymous ones are never listed.
func (r *Repo) GetUserPosts(ctx context.Context, authorId string) ([]*Post, error) {
	filter := bson.M{"authorId": authorId, "isAnonymous": false}
	return r.find(ctx, filter, options.Find().SetSort(recentFirst))
}

func (r *Repo) Search(ctx context.Context, query string, limit int) ([]*Post, error) {
	filter := bson.M{"content": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	return r.find(ctx, filter, options.Find().SetSort(recentFirst).SetLimit(int64(limit)))
}

func (r *Repo) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]*Post, error) {
	cursor, err := r.posts.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed finding posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("post/repo: failed geting posts from cursor: %w", err)
	}
	return posts, nil
}

// Delete removes the post together with its reposts and returns the ids
// of everything removed.
func (r *Repo) Delete(ctx context.Context, id PostId) ([]PostId, error) {
	reposts, err := r.find(ctx, bson.M{"originalPostId": id})
	if err != nil {
		return nil, err
	}
	removed := append([]PostId{id}, Ids(reposts)...)

	_, err = r.posts.DeleteMany(ctx, bson.M{"id": bson.M{"$in": removed}})
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed deleting post: %w", err)
	}
	return removed, nil
}

// Repost shares the original under authorId. Reposting a repost shares
// the post it points to.
func (r *Repo) Repost(ctx context.Context, authorId string, originalId PostId) (*Post, error) {
	original, err := r.GetById(ctx, originalId)
	if err != nil {
		return nil, err
	}
	if original.IsRepost() {
		if original, err = r.GetById(ctx, original.OriginalPostId); err != nil {
			return nil, err
		}
	}

	n, err := r.posts.CountDocuments(ctx, bson.M{"authorId": authorId, "originalPostId": original.Id})
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed checking reposts: %w", err)
	}
	if n > 0 {
		return nil, ErrAlreadyReposted
	}

	repost := &Post{
		Id:             newPostId(),
		AuthorId:       authorId,
		Content:        original.Content,
		OriginalPostId: original.Id,
		Created:        r.now(),
	}
	if _, err := r.Add(ctx, repost); err != nil {
		return nil, err
	}
	return repost, nil
}

type repostCount struct {
	Id    PostId `bson:"_id"`
	Count int    `bson:"count"`
}

// RepostCounts counts reposts per original in one aggregation. Posts
// without reposts are absent from the result.
func (r *Repo) RepostCounts(ctx context.Context, ids []PostId) (map[PostId]int, error) {
	counts := make(map[PostId]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"originalPostId": bson.M{"$in": ids}}}},
		{{Key: "$group", Value: bson.M{"_id": "$originalPostId", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed counting reposts: %w", err)
	}
	defer cursor.Close(ctx)

	rows := []repostCount{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("post/repo: failed reading repost counts: %w", err)
	}
	for _, row := range rows {
		counts[row.Id] = row.Count
	}
	return counts, nil
}

// RepostedBy reports which of ids the user has reposted.
func (r *Repo) RepostedBy(ctx context.Context, userId string, ids []PostId) (map[PostId]bool, error) {
	reposted := make(map[PostId]bool)
	if userId == "" || len(ids) == 0 {
		return reposted, nil
	}
	reposts, err := r.find(ctx, bson.M{"authorId": userId, "originalPostId": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, p := range reposts {
		reposted[p.OriginalPostId] = true
	}
	return reposted, nil
}
