package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/reiswijzer/reiswijzer-go/internal/cache"
	"github.com/reiswijzer/reiswijzer-go/internal/favorites"
	"github.com/reiswijzer/reiswijzer-go/internal/models"
	"github.com/reiswijzer/reiswijzer-go/internal/nsapi"
	"github.com/reiswijzer/reiswijzer-go/internal/ov"
	"github.com/reiswijzer/reiswijzer-go/internal/search"
)

// SearchEngine runs direct and combination journey searches
type SearchEngine interface {
	Direct(ctx context.Context, q search.Query) ([]models.Option, error)
	Search(ctx context.Context, q search.Query) ([]models.Option, error)
}

// StationResolver resolves free-text station queries
type StationResolver interface {
	Resolve(ctx context.Context, query string) ([]models.StationRecord, error)
}

// DepartureBoard fetches connecting-transit departures per stop
type DepartureBoard interface {
	Departures(ctx context.Context, station string) ([]models.DepartureRecord, error)
}

// Handler handles HTTP requests
type Handler struct {
	engine    SearchEngine
	resolver  StationResolver
	board     DepartureBoard
	results   *cache.ResultCache
	favorites *favorites.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(engine SearchEngine, resolver StationResolver, board DepartureBoard, results *cache.ResultCache, favs *favorites.Store) *Handler {
	return &Handler{
		engine:    engine,
		resolver:  resolver,
		board:     board,
		results:   results,
		favorites: favs,
	}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/stations", h.handleStations).Methods("GET")
	r.HandleFunc("/reis", h.handleReis).Methods("GET")
	r.HandleFunc("/reis-extreme-b", h.handleReisExtreme).Methods("GET")
	r.HandleFunc("/ov/by-station", h.handleOVByStation).Methods("GET")
	r.HandleFunc("/favorites", h.handleFavoritesList).Methods("GET")
	r.HandleFunc("/favorites", h.handleFavoritesAdd).Methods("POST")
	r.HandleFunc("/favorites", h.handleFavoritesRemove).Methods("DELETE")
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// wireStation is the /stations row shape: code plus per-language names
type wireStation struct {
	Code  string            `json:"code"`
	Namen map[string]string `json:"namen"`
}

// OptionsResponse wraps search results
type OptionsResponse struct {
	Options []models.Option `json:"options"`
}

// BoardResponse wraps a departure board, with the selector's window when
// an arrival time was given
type BoardResponse struct {
	Station    string                   `json:"station"`
	Departures []models.DepartureRecord `json:"departures"`
	Window     ov.Window                `json:"window,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	records, err := h.resolver.Resolve(r.Context(), query)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	out := make([]wireStation, len(records))
	for i, rec := range records {
		out[i] = wireStation{Code: rec.Code, Namen: map[string]string{"lang": rec.DisplayName}}
	}
	h.writeJSON(w, out)
}

func (h *Handler) handleReis(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	options, err := h.results.GetOrCompute("reis|"+q.Signature(), func() ([]models.Option, error) {
		// The flight is shared by every coalesced caller, so it must not
		// die with whichever request happened to start it. Upstream
		// timeouts and the engine budget still bound the work.
		return h.engine.Direct(context.WithoutCancel(r.Context()), q)
	})
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, OptionsResponse{Options: options})
}

func (h *Handler) handleReisExtreme(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	options, err := h.results.GetOrCompute("reis-extreme-b|"+q.Signature(), func() ([]models.Option, error) {
		return h.engine.Search(context.WithoutCancel(r.Context()), q)
	})
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, OptionsResponse{Options: options})
}

func (h *Handler) handleOVByStation(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	if station == "" {
		h.writeError(w, "Missing station parameter", http.StatusBadRequest)
		return
	}

	departures, err := h.board.Departures(r.Context(), station)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	resp := BoardResponse{Station: station, Departures: departures}

	if after := r.URL.Query().Get("after"); after != "" {
		arrival, perr := models.ParseTime(after)
		if perr != nil {
			h.writeError(w, "Invalid after parameter", http.StatusBadRequest)
			return
		}
		selection := ov.Select(departures, arrival)
		resp.Departures = selection.Rows
		resp.Window = selection.Window
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, perr := strconv.Atoi(limitStr)
		if perr != nil || limit < 0 {
			h.writeError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		if len(resp.Departures) > limit {
			resp.Departures = resp.Departures[:limit]
		}
	}

	h.writeJSON(w, resp)
}

func (h *Handler) handleFavoritesList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.favorites.List())
}

func (h *Handler) handleFavoritesAdd(w http.ResponseWriter, r *http.Request) {
	var f models.Favorite
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil || f.Van == "" || f.Naar == "" {
		h.writeError(w, "Invalid favorite body, expected {van, naar}", http.StatusBadRequest)
		return
	}
	if err := h.favorites.Add(f); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.favorites.List())
}

func (h *Handler) handleFavoritesRemove(w http.ResponseWriter, r *http.Request) {
	f := models.Favorite{
		Van:  r.URL.Query().Get("van"),
		Naar: r.URL.Query().Get("naar"),
	}
	if f.Van == "" || f.Naar == "" {
		h.writeError(w, "Missing van/naar parameter", http.StatusBadRequest)
		return
	}
	if err := h.favorites.Remove(f); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.favorites.List())
}

// parseQuery validates the shared search parameters; a false return means
// the 4xx response has been written.
func (h *Handler) parseQuery(w http.ResponseWriter, r *http.Request) (search.Query, bool) {
	van := r.URL.Query().Get("van")
	naar := r.URL.Query().Get("naar")
	if van == "" || naar == "" {
		h.writeError(w, "Missing van/naar parameter", http.StatusBadRequest)
		return search.Query{}, false
	}

	datetimeStr := r.URL.Query().Get("datetime")
	if datetimeStr == "" {
		h.writeError(w, "Missing datetime parameter", http.StatusBadRequest)
		return search.Query{}, false
	}
	datetime, err := models.ParseTime(datetimeStr)
	if err != nil {
		h.writeError(w, "Invalid datetime parameter", http.StatusBadRequest)
		return search.Query{}, false
	}

	arrival := false
	if s := r.URL.Query().Get("searchForArrival"); s != "" {
		arrival, err = strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, "Invalid searchForArrival parameter", http.StatusBadRequest)
			return search.Query{}, false
		}
	}

	return search.Query{
		From:             van,
		To:               naar,
		DateTime:         datetime,
		SearchForArrival: arrival,
	}, true
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, nsapi.ErrTimeout) {
		status = http.StatusGatewayTimeout
	}
	h.writeError(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.writeError(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
