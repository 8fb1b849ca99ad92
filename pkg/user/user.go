package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user: not found")
	ErrSelfFollow    = errors.New("user: can't follow yourself")
	ErrUsernameTaken = errors.New("user: username is taken")
)

type User struct {
	Id          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
	AvatarUrl   string    `json:"avatarUrl,omitempty"`
	IsVerified  bool      `json:"isVerified"`
	IsAdmin     bool      `json:"isAdmin"`
	Password    []byte    `json:"-"`
	Created     time.Time `json:"createdAt"`
}

// Author is the public projection of a user attached to posts and comments.
type Author struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarUrl   string `json:"avatarUrl,omitempty"`
	IsVerified  bool   `json:"isVerified"`
}

func (u *User) Author() *Author {
	return &Author{
		Id:          u.Id,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		IsVerified:  u.IsVerified,
	}
}

type Profile struct {
	*User
	FollowersCount int  `json:"followersCount"`
	FollowingCount int  `json:"followingCount"`
	IsFollowing    bool `json:"isFollowing"`
}

// ProfileUpdate holds the fields a user may change. Nil fields are kept.
type ProfileUpdate struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

// UserFromToken is what a session token carries about its owner.
type UserFromToken struct {
	Username string `json:"username"`
	Id       string `json:"id"`
}
