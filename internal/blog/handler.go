package blog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

type newBlogRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  *int   `json:"likes"`
}

func (req newBlogRequest) toBlog() Blog {
	b := Blog{
		Title:  req.Title,
		Author: req.Author,
		URL:    req.URL,
	}
	if req.Likes != nil {
		b.Likes = *req.Likes
	}
	return b
}

type Handler struct {
	store   Store
	metrics *metrics.Manager
}

func NewHandler(store Store, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		store:   store,
		metrics: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/blogs", handler.HandleList).Methods("GET").Name("list-blogs")
	router.HandleFunc("/api/blogs", handler.HandleCreate).Methods("POST", "OPTIONS").Name("new-blog")
	router.HandleFunc("/api/blogs/{id}", handler.HandleGet).Methods("GET").Name("get-blog")
	router.HandleFunc("/api/blogs/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-blog")
	router.HandleFunc("/api/blogs/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-blog")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.list")
	defer span.End()

	blogs, err := handler.store.All(ctx)
	if err != nil {
		log.Errorf("list blogs: %s", err)
		pkg.WriteError(w, "failed to get blogs", http.StatusInternalServerError)
		return
	}

	if len(blogs) == 0 {
		blogs = []Blog{}
	}
	span.SetAttributes(attribute.Int("blogs.count", len(blogs)))

	pkg.WriteJSON(w, blogs, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.get")
	defer span.End()

	id := mux.Vars(r)["id"]
	if !handler.store.ValidID(id) {
		pkg.WriteError(w, ErrMalformedID.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("blog.id", id))

	b, err := handler.store.Get(ctx, id)
	if err != nil {
		handler.writeStoreError(w, "get", id, err)
		return
	}

	pkg.WriteJSON(w, b, http.StatusOK)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.create")
	defer span.End()

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		pkg.WriteError(w, "invalid content type, application/json expected", http.StatusBadRequest)
		return
	}

	var req newBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new blog, unmarshal json: %s", err)
		pkg.WriteError(w, "invalid blog json", http.StatusBadRequest)
		return
	}

	newBlog := req.toBlog()
	if err := newBlog.Validate(); err != nil {
		pkg.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	addedBlog, err := handler.store.Add(ctx, newBlog)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			pkg.WriteError(w, validationErr.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("add new blog [%s]: %s", newBlog.Title, err)
		pkg.WriteError(w, "failed to add new blog", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterBlogsCreated.Inc()
	log.Tracef("new blog %s: [%s] added", addedBlog.ID, addedBlog.Title)

	pkg.WriteJSON(w, addedBlog, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.update")
	defer span.End()

	// id format is checked before anything else touches the store
	id := mux.Vars(r)["id"]
	if !handler.store.ValidID(id) {
		pkg.WriteError(w, ErrMalformedID.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("blog.id", id))

	var upd Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.Tracef("update blog %s, unmarshal json: %s", id, err)
		pkg.WriteError(w, "invalid blog json", http.StatusBadRequest)
		return
	}

	if err := upd.Validate(); err != nil {
		pkg.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	updatedBlog, err := handler.store.Update(ctx, id, upd)
	if err != nil {
		handler.writeStoreError(w, "update", id, err)
		return
	}

	pkg.WriteJSON(w, updatedBlog, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if !handler.store.ValidID(id) {
		pkg.WriteError(w, ErrMalformedID.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("blog.id", id))

	if err := handler.store.Delete(ctx, id); err != nil {
		handler.writeStoreError(w, "delete", id, err)
		return
	}

	handler.metrics.CounterBlogsDeleted.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) writeStoreError(w http.ResponseWriter, op, id string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrMalformedID):
		pkg.WriteError(w, ErrMalformedID.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrBlogNotFound):
		pkg.WriteError(w, ErrBlogNotFound.Error(), http.StatusNotFound)
	case errors.As(err, &validationErr):
		pkg.WriteError(w, validationErr.Error(), http.StatusBadRequest)
	default:
		log.Errorf("%s blog %s: %s", op, id, err)
		pkg.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
