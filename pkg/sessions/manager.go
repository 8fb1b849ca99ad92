package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gomodule/redigo/redis"

	. "ruangluka/pkg/common"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/user"
)

const (
	redisNS = "ruangluka:sessions:"

	sessionTTL   = 30 * 24 * time.Hour
	prolongAfter = 24 * time.Hour
)

type (
	sessionKey string

	// RedisPool is satisfied by *redis.Pool.
	RedisPool interface {
		Get() redis.Conn
	}

	SessionManager struct {
		secret []byte
		pool   RedisPool
		now    func() time.Time
	}

	jwtClaims struct {
		User user.UserFromToken `json:"user"`
		jwt.StandardClaims
	}
)

const SessionKey sessionKey = "authenticatedUser"

var (
	ErrNoAuth         = errors.New("sessions: no session found")
	ErrSessionExpired = errors.New("sessions: session has been expired")
)

func NewSessionManager(secret string, pool RedisPool) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		pool:   pool,
		now:    time.Now,
	}
}

func userKey(userId string) string {
	return redisNS + userId
}

// UserFromToken returns the token owner if the JWT is valid and its session
// is still recorded in Redis.
func (sm *SessionManager) UserFromToken(authHeader string) (*user.UserFromToken, error) {
	claims, err := sm.parse(authHeader)
	if err != nil {
		return nil, err
	}

	if err := sm.checkSession(claims.User.Id, claims.Id); err != nil {
		return nil, fmt.Errorf("sessions/manager: Redis session is not valid: %w", err)
	}

	u := claims.User
	return &u, nil
}

func (sm *SessionManager) parse(authHeader string) (*jwtClaims, error) {
	if authHeader == "" {
		return nil, errors.New("sessions: auth header not found")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sessions: unexpected signing method %v", token.Header["alg"])
			}
			return sm.secret, nil
		})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok {
		return nil, errors.New("sessions: can't cast token to claim")
	}
	if !token.Valid {
		return nil, errors.New("sessions: token is not valid")
	}
	return claims, nil
}

// CleanupUserSessions goes through all user sessions and removes expired ones.
func (sm *SessionManager) CleanupUserSessions(userId string) error {
	conn := sm.pool.Get()
	defer conn.Close()

	sessions, err := redis.StringMap(conn.Do("HGETALL", userKey(userId)))
	if err != nil {
		return fmt.Errorf("sessions/manager: can't HGETALL user sessions: %w", err)
	}

	nowTs := sm.now().Unix()
	for sessId, exp := range sessions {
		expTs, _ := strconv.ParseInt(exp, 10, 64)
		if nowTs > expTs {
			if _, err := conn.Do("HDEL", userKey(userId), sessId); err != nil {
				return fmt.Errorf("sessions/manager: can't HDEL session: %w", err)
			}
			logger.Log(context.TODO()).Debugf("sessions/manager: session %s removed (expired at %s)", sessId, exp)
		}
	}

	return nil
}

func (sm *SessionManager) checkSession(userId, sessionId string) error {
	conn := sm.pool.Get()
	defer conn.Close()

	expiredTs, err := redis.Int64(conn.Do("HGET", userKey(userId), sessionId))
	if err != nil {
		return fmt.Errorf("sessions/manager: can't HGET session: %w", err)
	}

	nowTs := sm.now().Unix()
	if nowTs > expiredTs {
		return ErrSessionExpired
	}

	// Keep active users logged in.
	if expiredTs-nowTs < int64(prolongAfter.Seconds()) {
		newExp := sm.now().Add(sessionTTL).Unix()
		if _, err := conn.Do("HSET", userKey(userId), sessionId, newExp); err != nil {
			return fmt.Errorf("sessions/manager: failed HSET: %w", err)
		}
	}

	return nil
}

func (sm *SessionManager) CreateToken(u *user.User) (string, error) {
	sessionID := RandStringRunes(10)
	now := sm.now()
	data := jwtClaims{
		User: user.UserFromToken{Id: u.Id, Username: u.Username},
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(sessionTTL).Unix(),
			IssuedAt:  now.Unix(),
			Id:        sessionID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, data).SignedString(sm.secret)
	if err != nil {
		return "", err
	}

	conn := sm.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("HSET", userKey(u.Id), sessionID, data.ExpiresAt); err != nil {
		return ``, fmt.Errorf("sessions/manager: failed HSET: %w", err)
	}

	return token, nil
}

// Destroy removes the session behind the token.
func (sm *SessionManager) Destroy(authHeader string) error {
	claims, err := sm.parse(authHeader)
	if err != nil {
		return err
	}

	conn := sm.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("HDEL", userKey(claims.User.Id), claims.Id); err != nil {
		return fmt.Errorf("sessions/manager: failed HDEL: %w", err)
	}
	return nil
}

func WithAuthUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, SessionKey, u)
}

func GetAuthUser(ctx context.Context) (*user.User, error) {
	u, ok := ctx.Value(SessionKey).(*user.User)
	if !ok || u == nil {
		return nil, ErrNoAuth
	}
	return u, nil
}

// ViewerId returns the authenticated user id or "" for anonymous requests.
func ViewerId(ctx context.Context) string {
	u, err := GetAuthUser(ctx)
	if err != nil {
		return ""
	}
	return u.Id
}
