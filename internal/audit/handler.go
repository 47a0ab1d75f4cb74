package audit

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bastion-authz/bastion/internal/platform/httpx"
)

// Handler exposes the audit timeline to operators.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the audit endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Timeline(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, entry := range result.Rows {
		row := map[string]any{
			"id":         entry.ID,
			"actor_id":   entry.ActorID,
			"action":     entry.Action,
			"kind":       entry.Kind,
			"success":    entry.Success,
			"reason":     entry.Reason,
			"created_at": entry.CreatedAt,
		}
		if entry.ResourceID != nil {
			row["resource_id"] = *entry.ResourceID
		}
		rows = append(rows, row)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows":   rows,
		"paging": result.Paging,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filters := filtersFromQuery(r)
	filters.Page = 1
	filters.PageSize = 100

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"created_at", "actor_id", "resource_id", "action", "kind", "success", "reason"})

	for {
		result, err := h.service.Timeline(r.Context(), filters)
		if err != nil {
			h.logger.Error("audit export", slog.Any("error", err))
			return
		}
		for _, entry := range result.Rows {
			resourceID := ""
			if entry.ResourceID != nil {
				resourceID = entry.ResourceID.String()
			}
			_ = writer.Write([]string{
				entry.CreatedAt.Format(time.RFC3339),
				entry.ActorID.String(),
				resourceID,
				entry.Action,
				entry.Kind,
				strconv.FormatBool(entry.Success),
				entry.Reason,
			})
		}
		if !result.Paging.HasNext {
			break
		}
		filters.Page = result.Paging.NextPage
	}
	writer.Flush()
}

func filtersFromQuery(r *http.Request) TimelineFilters {
	query := r.URL.Query()
	filters := TimelineFilters{
		ActorID: query.Get("actor_id"),
		Action:  query.Get("action"),
		Reason:  query.Get("reason"),
	}
	if raw := query.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.From = t
		}
	}
	if raw := query.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.To = t
		}
	}
	if raw := query.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filters.Page = page
		}
	}
	if raw := query.Get("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			filters.PageSize = size
		}
	}
	return filters
}
