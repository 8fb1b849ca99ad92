package feed

import (
	"context"
	"net/http"

	"ruangluka/pkg/common"
	"ruangluka/pkg/engagement"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/sessions"
)

type (
	IRanker interface {
		Rank(ctx context.Context, viewerId string) ([]*engagement.EnrichedPost, error)
	}

	ITrending interface {
		Topics(ctx context.Context) ([]TrendingTopic, error)
	}
)

type FeedHandler struct {
	Ranker   IRanker
	Trending ITrending
}

func NewFeedHandler(r IRanker, t ITrending) *FeedHandler {
	return &FeedHandler{
		Ranker:   r,
		Trending: t,
	}
}

func (fh *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	viewer, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		logger.Log(r.Context()).Errorf("feed/handlers: no auth user: %v", err)
		common.WriteMsg(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	posts, err := fh.Ranker.Rank(r.Context(), viewer.Id)
	if err != nil {
		logger.Log(r.Context()).Errorf("feed/handlers: can't rank feed for user %s: %v", viewer.Id, err)
		common.WriteMsg(w, "failed loading feed", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, posts)
}

func (fh *FeedHandler) TrendingTopics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	topics, err := fh.Trending.Topics(r.Context())
	if err != nil {
		logger.Log(r.Context()).Errorf("feed/handlers: can't load trending topics: %v", err)
		common.WriteMsg(w, "failed loading trending topics", http.StatusInternalServerError)
		return
	}

	common.WriteRespJSON(w, topics)
}
