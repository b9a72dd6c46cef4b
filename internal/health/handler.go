package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/pkg"
)

const (
	statusOK       = "ok"
	statusDisabled = "disabled"
	statusFailing  = "failing"

	pingTimeout = 3 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Status struct {
	Store string `json:"store"`
	Redis string `json:"redis"`
}

func (s Status) Healthy() bool {
	return s.Store != statusFailing && s.Redis != statusFailing
}

type Handler struct {
	store       Pinger
	redisClient *redis.Client
}

// NewHandler creates a health handler; redisClient may be nil when redis is not configured.
func NewHandler(store Pinger, redisClient *redis.Client) *Handler {
	return &Handler{
		store:       store,
		redisClient: redisClient,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", handler.HandleHealth).Methods("GET").Name("health")
}

func (handler *Handler) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := Status{
		Store: statusOK,
		Redis: statusDisabled,
	}

	if err := handler.store.Ping(ctx); err != nil {
		log.Errorf("health: store ping: %s", err)
		status.Store = statusFailing
	}

	if handler.redisClient != nil {
		if err := handler.redisClient.Ping(ctx).Err(); err != nil {
			log.Errorf("health: redis ping: %s", err)
			status.Redis = statusFailing
		} else {
			status.Redis = statusOK
		}
	}

	return status
}

func (handler *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := handler.Check(r.Context())
	if !status.Healthy() {
		pkg.WriteJSON(w, status, http.StatusServiceUnavailable)
		return
	}
	pkg.WriteJSON(w, status, http.StatusOK)
}
