package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/internal/usecase"
	"quotecast-service/pkg/logger"

	"github.com/google/uuid"
)

// HTTPHandler exposes the quote, catalog-sync and plan catalog endpoints
type HTTPHandler struct {
	orchestrator *usecase.QuoteOrchestrator
	synchronizer *usecase.CatalogSynchronizer
	plans        repository.PlanRepository
	logger       logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	orchestrator *usecase.QuoteOrchestrator,
	synchronizer *usecase.CatalogSynchronizer,
	plans repository.PlanRepository,
	logger logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orchestrator: orchestrator,
		synchronizer: synchronizer,
		plans:        plans,
		logger:       logger,
	}
}

// Register mounts the API routes on mux
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/quotes", h.handleQuotes)
	mux.HandleFunc("POST /api/v1/catalog/sync", h.handleCatalogSync)
	mux.HandleFunc("GET /api/v1/plans", h.handleListPlans)
}

type quoteRequestDTO struct {
	Destination string `json:"destination"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Passengers  []struct {
		Age int `json:"age"`
	} `json:"passengers"`
	Currency string `json:"currency"`
	Preview  bool   `json:"preview"`
}

func (h *HTTPHandler) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var dto quoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	start, err := time.Parse("2006-01-02", dto.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startDate must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse("2006-01-02", dto.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "endDate must be a YYYY-MM-DD date")
		return
	}

	req := &entity.QuoteRequest{
		Destination: dto.Destination,
		StartDate:   start,
		EndDate:     end,
		Currency:    dto.Currency,
		Preview:     dto.Preview,
	}
	for _, p := range dto.Passengers {
		req.Passengers = append(req.Passengers, entity.Passenger{Age: p.Age})
	}

	response, err := h.orchestrator.GetQuotes(r.Context(), req)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, "quote aggregation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) handleCatalogSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.synchronizer.Sync(r.Context())
	if err != nil {
		h.internalError(w, "catalog sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	filter := repository.PlanFilter{
		DestinationSlug: r.URL.Query().Get("destination"),
		ActiveProviders: true,
	}
	if ageParam := r.URL.Query().Get("age"); ageParam != "" {
		age, err := strconv.Atoi(ageParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "age must be an integer")
			return
		}
		filter.Age = &age
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	plans, err := h.plans.FindMany(r.Context(), offset, limit, filter)
	if err != nil {
		h.internalError(w, "plan catalog lookup failed", err)
		return
	}
	if plans == nil {
		plans = []*entity.InsurancePlan{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// internalError responds with a generic message plus a correlation id and
// logs the real failure under the same id. Provider credentials and stack
// detail never reach the client.
func (h *HTTPHandler) internalError(w http.ResponseWriter, msg string, err error) {
	correlationID := uuid.NewString()
	h.logger.Error(msg, "correlationId", correlationID, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":         "internal error",
		"correlationId": correlationID,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
