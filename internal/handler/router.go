package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/lumen/backend/internal/handler/chat"
	"github.com/zhouzirui/lumen/backend/internal/handler/search"
	"github.com/zhouzirui/lumen/backend/internal/handler/shell"
	"github.com/zhouzirui/lumen/backend/internal/handler/stream"
	"github.com/zhouzirui/lumen/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/lumen/backend/internal/middleware"
	aiService "github.com/zhouzirui/lumen/backend/internal/service/ai"
	chatService "github.com/zhouzirui/lumen/backend/internal/service/chat"
	searchService "github.com/zhouzirui/lumen/backend/internal/service/search"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, aiSvc *aiService.Service, searchSvc *searchService.Client, searchDefaults search.Defaults, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(api chi.Router) {
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(aiSvc, chatSvc).RegisterRoutes(api)
		search.New(searchSvc, searchDefaults).RegisterRoutes(api)
		shell.NewWebSocketHandler(chatSvc, aiSvc, searchSvc, searchDefaults).RegisterRoutes(api)
	})

	return r
}
