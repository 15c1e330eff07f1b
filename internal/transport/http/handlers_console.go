package httptransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"regnotify/internal/events"
	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/templates"
	"regnotify/internal/provider"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
	"regnotify/internal/stats"
	dErrors "regnotify/pkg/domain-errors"
)

const latestDefaultLimit = 10

// ConsoleHandler serves the dashboard read endpoints and the configuration
// surface.
type ConsoleHandler struct {
	settings  *settings.Service
	templates templates.Store
	stats     *stats.Service
	source    registrations.Source
	provider  provider.Provider
	hub       events.Hub
	logger    *slog.Logger
}

func NewConsoleHandler(
	settingsSvc *settings.Service,
	templateStore templates.Store,
	statsSvc *stats.Service,
	source registrations.Source,
	prov provider.Provider,
	hub events.Hub,
	logger *slog.Logger,
) *ConsoleHandler {
	return &ConsoleHandler{
		settings:  settingsSvc,
		templates: templateStore,
		stats:     statsSvc,
		source:    source,
		provider:  prov,
		hub:       hub,
		logger:    logger.With("handler", "console"),
	}
}

func (h *ConsoleHandler) Register(r chi.Router) {
	r.Get("/status", h.Status)
	r.Get("/api/config", h.GetConfig)
	r.Post("/api/save-config", h.SaveConfig)
	r.Get("/api/templates", h.ListTemplates)
	r.Post("/api/update-template", h.UpdateTemplate)
	r.Get("/api/stats", h.Stats)
	r.Get("/api/latest-registrations", h.LatestRegistrations)
	r.Get("/api/all-registrations", h.AllRegistrations)
	r.Get("/api/events", h.Events)
}

func (h *ConsoleHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"connected": h.provider.Connected(r.Context()),
		"provider":  h.provider.Name(),
	})
}

func (h *ConsoleHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  h.settings.Get(),
	})
}

func (h *ConsoleHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.settings.Update(r.Context(), req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to save configuration"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ConsoleHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.List(r.Context())
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load templates"))
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, tmpl := range list {
		out = append(out, map[string]any{
			"id":            tmpl.ID,
			"name":          tmpl.Name,
			"template_type": string(tmpl.Stage),
			"message_text":  tmpl.Text,
			"is_active":     tmpl.IsActive,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "templates": out})
}

func (h *ConsoleHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateType string `json:"template_type"`
		Name         string `json:"name"`
		MessageText  string `json:"message_text"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	stage := models.Stage(req.TemplateType)
	if !stage.Valid() {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("Unknown template type %q", req.TemplateType)))
		return
	}
	if req.MessageText == "" {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Template text is required"))
		return
	}

	if err := h.templates.Save(r.Context(), stage, req.Name, req.MessageText); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error()))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ConsoleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.stats.Overview(r.Context())
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load stats"))
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (h *ConsoleHandler) LatestRegistrations(w http.ResponseWriter, r *http.Request) {
	limit := latestDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	regs, err := h.source.Latest(r.Context(), limit)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load registrations"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"registrations": registrationViews(regs),
	})
}

func (h *ConsoleHandler) AllRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.source.All(r.Context())
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load registrations"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"registrations": registrationViews(regs),
	})
}

// Events streams the live hub over server-sent events.
func (h *ConsoleHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, dErrors.New(dErrors.CodeInternal, "Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ch, cancel := h.hub.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
			flusher.Flush()
		}
	}
}

func registrationViews(regs []models.Registration) []map[string]any {
	out := make([]map[string]any, 0, len(regs))
	for _, reg := range regs {
		out = append(out, map[string]any{
			"id":              reg.ID,
			"registration_no": reg.RegistrationNo,
			"name":            reg.Name,
			"mobile":          reg.Mobile,
			"village":         reg.Village,
			"state":           reg.State,
			"position":        reg.Position,
			"age":             reg.Age,
			"gender":          reg.Gender,
			"total_members":   reg.TotalMembers,
		})
	}
	return out
}
