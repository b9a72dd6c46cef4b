package blogstats

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/pkg"
)

type Handler struct {
	reporter *Reporter
}

func NewHandler(reporter *Reporter) *Handler {
	return &Handler{
		reporter: reporter,
	}
}

// SetupRoutes must run before the blog routes, or /api/blogs/{id} would capture "stats".
func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/blogs/stats", handler.HandleStats).Methods("GET").Name("blog-stats")
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	report, err := handler.reporter.Report(r.Context())
	if err != nil {
		log.Errorf("blog stats report: %s", err)
		pkg.WriteError(w, "failed to get blog stats", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, report, http.StatusOK)
}
