package main

import (
	"context"
	"database/sql"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ruangluka/pkg/comment"
	"ruangluka/pkg/engagement"
	"ruangluka/pkg/feed"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/middleware"
	"ruangluka/pkg/notification"
	"ruangluka/pkg/post"
	postapi "ruangluka/pkg/post/api"
	"ruangluka/pkg/sessions"
	"ruangluka/pkg/user"
	userapi "ruangluka/pkg/user/api"
)

type EnvConfig map[string]string

var defaults = EnvConfig{
	"POSTGRES_DSN": "postgresql://localhost/ruangluka?sslmode=disable",
	"MONGODB_URI":  "mongodb://localhost:27017",
	"MONGODB_DB":   "ruangluka",
	"REDIS_ADDR":   "redis://localhost:6379",
	"LOG_LEVEL":    "info",
	"HTTP_ADDR":    ":8080",
	"SEED":         "false",
}

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	cfg := readDotenv()
	if cfg["SECRET_KEY"] == "" {
		log.Fatal("main: SECRET_KEY is required")
	}

	db, err := sql.Open("pgx", cfg["POSTGRES_DSN"])
	if err != nil {
		log.Fatalf("main: unable to open PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("main: unable to reach PostgreSQL: %v", err)
	}

	redisPool := &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(cfg["REDIS_ADDR"])
		},
	}
	defer redisPool.Close()

	mongoCtx, mongoCtxCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer mongoCtxCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg["MONGODB_URI"]))
	if err != nil {
		log.Fatalln("main: can't connect to MongoDB,", err)
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		log.Fatalln("main: unable to connect to MongoDB,", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Println("main: failed disconnecting from MongoDB,", err)
		}
	}()

	postsRepo := post.NewPostRepo(mongoClient.Database(cfg["MONGODB_DB"]).Collection("posts"))
	usersRepo := user.NewUserRepo(db)
	commentsRepo := comment.NewCommentRepo(db)
	engagementRepo := engagement.NewEngagementRepo(db)
	notificationsRepo := notification.NewNotificationRepo(db)
	sessionManager := sessions.NewSessionManager(cfg["SECRET_KEY"], redisPool)

	if cfg["SEED"] == "true" {
		seed(context.Background(), usersRepo, postsRepo, commentsRepo, engagementRepo)
	}

	hub := notification.NewHub()
	notifier := notification.NewService(notificationsRepo, hub)
	aggregator := engagement.NewAggregator(postsRepo, usersRepo, commentsRepo, engagementRepo)
	feedHandler := feed.NewFeedHandler(
		feed.NewRanker(postsRepo, usersRepo, aggregator),
		feed.NewTrending(postsRepo, aggregator),
	)
	postHandler := postapi.NewPostHandler(postsRepo, usersRepo, commentsRepo, engagementRepo, aggregator, notifier)
	userHandler := userapi.NewUserHandler(usersRepo, sessionManager, notifier)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	authOnly := middleware.RequireAuth

	// Feed
	api.HandleFunc("/feed", authOnly(feedHandler.Feed)).Methods("GET")
	api.HandleFunc("/trending", feedHandler.TrendingTopics).Methods("GET")

	// Posts, explore must go before {post_id}
	api.HandleFunc("/posts/explore", postHandler.Explore).Methods("GET")
	api.HandleFunc("/search", postHandler.Search).Methods("GET")
	api.HandleFunc("/posts", authOnly(postHandler.Add)).Methods("POST")
	api.HandleFunc("/posts/{post_id}", postHandler.Get).Methods("GET")
	api.HandleFunc("/posts/{post_id}", authOnly(postHandler.Delete)).Methods("DELETE")
	api.HandleFunc("/posts/{post_id}/like", authOnly(postHandler.Like)).Methods("POST")
	api.HandleFunc("/posts/{post_id}/repost", authOnly(postHandler.Repost)).Methods("POST")
	api.HandleFunc("/posts/{post_id}/bookmark", authOnly(postHandler.Bookmark)).Methods("POST")
	api.HandleFunc("/posts/{post_id}/reactions", authOnly(postHandler.React)).Methods("POST")
	api.HandleFunc("/posts/{post_id}/reactions", authOnly(postHandler.Unreact)).Methods("DELETE")
	api.HandleFunc("/bookmarks", authOnly(postHandler.Bookmarks)).Methods("GET")

	// Comments
	api.HandleFunc("/posts/{post_id}/comments", postHandler.ListComments).Methods("GET")
	api.HandleFunc("/posts/{post_id}/comments", authOnly(postHandler.AddComment)).Methods("POST")

	// Users
	api.HandleFunc("/register", userHandler.Register).Methods("POST")
	api.HandleFunc("/login", userHandler.LogIn).Methods("POST")
	api.HandleFunc("/logout", userHandler.LogOut).Methods("POST")
	api.HandleFunc("/me", authOnly(userHandler.Me)).Methods("GET")
	api.HandleFunc("/me", authOnly(userHandler.UpdateProfile)).Methods("PATCH")
	api.HandleFunc("/users/{username}", userHandler.Profile).Methods("GET")
	api.HandleFunc("/users/{username}/posts", postHandler.GetByUser).Methods("GET")
	api.HandleFunc("/users/{user_id}/follow", authOnly(userHandler.Follow)).Methods("POST")

	// Notifications
	api.HandleFunc("/notifications", authOnly(notifier.List)).Methods("GET")
	api.HandleFunc("/notifications/unread", authOnly(notifier.Unread)).Methods("GET")
	api.HandleFunc("/notifications/read", authOnly(notifier.MarkRead)).Methods("POST")
	api.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	logMiddleware := middleware.NewLoggingMiddleware(logger.Run(cfg["LOG_LEVEL"]))
	r.Use(logMiddleware.SetupTracing)
	r.Use(logMiddleware.SetupLogging)
	r.Use(logMiddleware.AccessLog)

	auth := middleware.NewAuthMiddleware(sessionManager, usersRepo)
	r.Use(auth.Middleware)

	log.Printf("Serving at %s\n", cfg["HTTP_ADDR"])
	log.Fatalln(http.ListenAndServe(cfg["HTTP_ADDR"], r))
}

// readDotenv reads .env when present, unset keys fall back to defaults.
func readDotenv() EnvConfig {
	env, err := godotenv.Read()
	if err != nil {
		log.Println("main: no .env file, using defaults:", err)
		env = map[string]string{}
	}

	cfg := EnvConfig{}
	for k, v := range defaults {
		cfg[k] = v
	}
	for k, v := range env {
		if v != "" {
			cfg[k] = v
		}
	}
	return cfg
}
