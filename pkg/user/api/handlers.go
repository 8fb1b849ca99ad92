package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"ruangluka/pkg/common"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/notification"
	"ruangluka/pkg/sessions"
	"ruangluka/pkg/user"
)

type (
	UserRepo interface {
		UserExists(context.Context, string) bool
		EmailExists(context.Context, string) bool
		ExistsById(context.Context, string) (bool, error)
		GetByUsernameAndPass(context.Context, string, string) (*user.User, error)
		Add(context.Context, *user.User) (string, error)
		GetProfile(ctx context.Context, username, viewerId string) (*user.Profile, error)
		ToggleFollow(ctx context.Context, followerId, followingId string) (bool, error)
		UpdateProfile(ctx context.Context, uid string, upd user.ProfileUpdate) (*user.User, error)
	}

	SessionManager interface {
		CreateToken(*user.User) (string, error)
		CleanupUserSessions(userId string) error
		Destroy(authHeader string) error
	}

	Notifier interface {
		Notify(context.Context, *notification.Notification) error
	}

	UserHandler struct {
		Repo           UserRepo
		SessionManager SessionManager
		Notifier       Notifier
	}

	HttpUser struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
	}
)

func NewUserHandler(r UserRepo, sm SessionManager, n Notifier) *UserHandler {
	return &UserHandler{
		Repo:           r,
		SessionManager: sm,
		Notifier:       n,
	}
}

func (uh UserHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	err := common.ParseReqBody(r.Body, httpUser)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't parse request body as user: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	login := httpUser.Username
	if common.Blank(login) {
		login = httpUser.Email
	}
	u, err := uh.Repo.GetByUsernameAndPass(r.Context(), login, httpUser.Password)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't get the user by login `%s` and password: %v",
			login, err)
		common.WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}

	// Remove expired user session if there are any
	if err := uh.SessionManager.CleanupUserSessions(u.Id); err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't cleanup sessions for user `%s`, %v", httpUser.Username, err)
		common.WriteMsg(w, "failed managing user sessions", http.StatusInternalServerError)
		return
	}

	uh.sendToken(w, r, u, http.StatusOK)
}

func (uh UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	err := common.ParseReqBody(r.Body, httpUser)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't parse request body as user: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}
	if common.Blank(httpUser.Username) || common.Blank(httpUser.Email) || common.Blank(httpUser.Password) {
		common.WriteMsg(w, "username, email and password are required", http.StatusBadRequest)
		return
	}

	// Check if user already exists
	if uh.Repo.UserExists(r.Context(), httpUser.Username) {
		msg := fmt.Sprintf(`user "%s" already exists`, httpUser.Username)
		logger.Log(r.Context()).Info(msg)
		common.WriteMsg(w, msg, http.StatusConflict)
		return
	}
	if uh.Repo.EmailExists(r.Context(), httpUser.Email) {
		common.WriteMsg(w, "email is already registered", http.StatusConflict)
		return
	}

	displayName := httpUser.DisplayName
	if common.Blank(displayName) {
		displayName = httpUser.Username
	}
	u := &user.User{
		Username:    httpUser.Username,
		Email:       httpUser.Email,
		DisplayName: displayName,
		Password:    common.NewPassHash(httpUser.Password),
	}
	id, err := uh.Repo.Add(r.Context(), u)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't add user `%s`: %v", u.Username, err)
		common.WriteMsg(w, "can't add user", http.StatusInternalServerError)
		return
	}
	u.Id = id

	uh.sendToken(w, r, u, http.StatusCreated)
}

func (uh UserHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := uh.SessionManager.Destroy(r.Header.Get("Authorization")); err != nil {
		logger.Log(r.Context()).Infof("user/handlers: logout without a valid session: %v", err)
		common.WriteMsg(w, "not authorized", http.StatusUnauthorized)
		return
	}

	common.WriteMsg(w, "success", http.StatusOK)
}

func (uh UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	common.WriteRespJSON(w, u)
}

func (uh UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upd := user.ProfileUpdate{}
	if err := common.ParseReqBody(r.Body, &upd); err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't parse profile update: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}
	if (upd.Username != nil && common.Blank(*upd.Username)) || (upd.DisplayName != nil && common.Blank(*upd.DisplayName)) {
		common.WriteMsg(w, "username and display name can't be empty", http.StatusBadRequest)
		return
	}

	updated, err := uh.Repo.UpdateProfile(r.Context(), u.Id, upd)
	if errors.Is(err, user.ErrUsernameTaken) {
		common.WriteMsg(w, "username is taken", http.StatusConflict)
		return
	}
	if errors.Is(err, user.ErrNotFound) {
		common.WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't update profile of %s: %v", u.Id, err)
		common.WriteMsg(w, "failed updating profile", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, updated)
}

func (uh UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	username := mux.Vars(r)["username"]
	p, err := uh.Repo.GetProfile(r.Context(), username, sessions.ViewerId(r.Context()))
	if errors.Is(err, user.ErrNotFound) {
		common.WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't load profile of `%s`: %v", username, err)
		common.WriteMsg(w, "failed loading profile", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, p)
}

func (uh UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	follower, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	targetId := mux.Vars(r)["user_id"]
	exists, err := uh.Repo.ExistsById(r.Context(), targetId)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't check user %s: %v", targetId, err)
		common.WriteMsg(w, "follow failed", http.StatusInternalServerError)
		return
	}
	if !exists {
		common.WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}

	following, err := uh.Repo.ToggleFollow(r.Context(), follower.Id, targetId)
	if errors.Is(err, user.ErrSelfFollow) {
		common.WriteMsg(w, "you can't follow yourself", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: follow of %s failed: %v", targetId, err)
		common.WriteMsg(w, "follow failed", http.StatusInternalServerError)
		return
	}

	if following {
		n := &notification.Notification{UserId: targetId, ActorId: follower.Id, Kind: notification.KindFollow}
		if err := uh.Notifier.Notify(r.Context(), n); err != nil {
			logger.Log(r.Context()).Errorf("user/handlers: can't notify user %s: %v", targetId, err)
		}
	}

	common.WriteRespJSON(w, struct {
		Following bool `json:"following"`
	}{following})
}

func (uh *UserHandler) sendToken(w http.ResponseWriter, r *http.Request, u *user.User, code int) {
	token, err := uh.SessionManager.CreateToken(u)
	if err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't create JWT token from user: %v", err)
		common.WriteMsg(w, "user authentication failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(code)
	common.WriteRespJSON(w, struct {
		Token string     `json:"token"`
		User  *user.User `json:"user"`
	}{token, u})
}
