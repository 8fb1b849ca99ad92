package main

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"

	"ruangluka/pkg/comment"
	. "ruangluka/pkg/common"
	"ruangluka/pkg/post"
	"ruangluka/pkg/reaction"
	"ruangluka/pkg/user"
)

var (
	f             = faker.New()
	onePassForAll = NewPassHash("sdfsdfsdf")
)

type (
	seedUsers interface {
		Add(context.Context, *user.User) (string, error)
		GetAll(context.Context) ([]*user.User, error)
		ToggleFollow(ctx context.Context, followerId, followingId string) (bool, error)
	}

	seedPosts interface {
		Add(context.Context, *post.Post) (post.PostId, error)
	}

	seedComments interface {
		AddComment(context.Context, post.PostId, *user.User, string) (*comment.Comment, error)
	}

	seedEngagement interface {
		ToggleLike(ctx context.Context, postId post.PostId, userId string) (bool, error)
		SetReaction(ctx context.Context, postId post.PostId, userId string, kind reaction.Kind) error
	}
)

// seed fills empty stores with fake users, curhat and engagement so the
// feed has something to rank.
func seed(ctx context.Context, users seedUsers, posts seedPosts, comments seedComments, eng seedEngagement) {
	authors, err := users.GetAll(ctx)
	if err != nil {
		log.Fatalln("seed: can't get all authors:", err)
	}
	if len(authors) > 0 {
		log.Println("seed: users exist, skipping")
		return
	}

	authors = createAuthors(ctx, users)
	for _, a := range authors {
		for _, b := range authors {
			if a.Id != b.Id && rand.Intn(3) == 0 {
				if _, err := users.ToggleFollow(ctx, a.Id, b.Id); err != nil {
					log.Fatalln("seed: can't follow:", err)
				}
			}
		}
	}

	for i := 0; i < 30; i++ {
		p := genPost(authors)
		if _, err := posts.Add(ctx, p); err != nil {
			log.Fatalln("seed: can't add post:", err)
		}
		engage(ctx, p, authors, comments, eng)
	}
}

func createAuthors(ctx context.Context, users seedUsers) []*user.User {
	// User for experiments (not random)
	created := []*user.User{genUser("pike")}
	for i := 0; i < 5; i++ {
		created = append(created, genUser(strings.ToLower(f.Person().FirstName())+RandStringRunes(3)))
	}

	for _, u := range created {
		id, err := users.Add(ctx, u)
		if err != nil {
			log.Fatalln("seed: can't add user:", err)
		}
		u.Id = id
	}
	return created
}

func genUser(username string) *user.User {
	return &user.User{
		Username:    username,
		Email:       username + "@ruangluka.id",
		DisplayName: f.Person().Name(),
		Password:    onePassForAll,
	}
}

func genPost(authors []*user.User) *post.Post {
	category := ""
	if rand.Intn(4) > 0 {
		category = post.Categories[rand.Intn(len(post.Categories))]
	}
	// spread over the last ten days so some posts fall out of the windows
	created := time.Now().Add(-time.Duration(rand.Intn(240)) * time.Hour)

	p, err := post.New(randUser(authors).Id, f.Lorem().Paragraph(rand.Intn(3)+1), rand.Intn(4) == 0, category, created)
	if err != nil {
		log.Fatalln("seed: generated an invalid post:", err)
	}
	return p
}

func engage(ctx context.Context, p *post.Post, users []*user.User, comments seedComments, eng seedEngagement) {
	for _, u := range users {
		if rand.Intn(2) == 0 {
			if _, err := eng.ToggleLike(ctx, p.Id, u.Id); err != nil {
				log.Fatalln("seed: can't like:", err)
			}
		}
		if rand.Intn(3) == 0 {
			kind := reaction.Kinds[rand.Intn(len(reaction.Kinds))]
			if err := eng.SetReaction(ctx, p.Id, u.Id, kind); err != nil {
				log.Fatalln("seed: can't react:", err)
			}
		}
	}

	for i := rand.Intn(4); i > 0; i-- {
		if _, err := comments.AddComment(ctx, p.Id, randUser(users), f.Lorem().Sentence(rand.Intn(8)+3)); err != nil {
			log.Fatalln("seed: can't comment:", err)
		}
	}
}

func randUser(users []*user.User) *user.User {
	return users[rand.Intn(len(users))]
}
