package search

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	searchmodel "github.com/zhouzirui/lumen/backend/internal/model/search"
	searchService "github.com/zhouzirui/lumen/backend/internal/service/search"
	"github.com/zhouzirui/lumen/backend/pkg/utils"
)

// EventSearchResult carries one result.
const EventSearchResult = "search-result"

// Defaults applied to requests that leave fields out.
type Defaults struct {
	MaxResults int
	Mode       searchmodel.Mode
}

// Handler 搜索服务的HTTP处理器
type Handler struct {
	searchSvc *searchService.Client
	defaults  Defaults
	logger    *slog.Logger
}

func New(searchSvc *searchService.Client, defaults Defaults) *Handler {
	if defaults.MaxResults < 1 {
		defaults.MaxResults = searchmodel.DefaultMaxResults
	}
	if defaults.Mode == "" {
		defaults.Mode = searchmodel.ModeFast
	}
	return &Handler{
		searchSvc: searchSvc,
		defaults:  defaults,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/search", h.handleSearch)
}

// Request is the body of POST /search.
type Request struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"maxResults,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// Resolve applies the defaults and validates the request.
func (d Defaults) Resolve(req Request) (searchmodel.Query, searchmodel.Mode, error) {
	q := searchmodel.Query{Query: req.Query, MaxResults: d.MaxResults}
	if req.MaxResults != nil {
		q.MaxResults = *req.MaxResults
	}

	mode := d.Mode
	if req.Mode != "" {
		parsed, err := searchmodel.ParseMode(req.Mode)
		if err != nil {
			return q, "", err
		}
		mode = parsed
	}

	if err := q.Validate(); err != nil {
		return q, "", err
	}
	return q, mode, nil
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var req Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query, mode, err := h.defaults.Resolve(req)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	stream, err := h.searchSvc.Search(ctx, query, mode)
	if err != nil {
		h.logger.Warn("search failed", "query", query.Query, "mode", mode, "error", err)
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	count := 0
	for {
		result, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sendErr := utils.SendSSEEvent(w, flusher, utils.EventError, map[string]string{"error": err.Error()}); sendErr != nil {
				h.logger.Debug("client gone before error event", "error", sendErr)
			}
			return
		}
		if err := utils.SendSSEEvent(w, flusher, EventSearchResult, result); err != nil {
			h.logger.Debug("client gone during search stream", "error", err)
			return
		}
		count++
	}

	if err := utils.SendSSEEvent(w, flusher, utils.EventDone, map[string]int{"count": count}); err != nil {
		h.logger.Debug("client gone before done event", "count", count, "error", err)
	}
}
