package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"regnotify/internal/notify/broadcast"
	"regnotify/internal/notify/dispatch"
	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/tracking"
	regsync "regnotify/internal/notify/sync"
	"regnotify/internal/pass"
	"regnotify/internal/provider"
	dErrors "regnotify/pkg/domain-errors"
	"regnotify/pkg/sentinel"
)

const maxBroadcastMedia = 16 << 20

// MessageHandler serves the outbound operations: broadcasts, manual stage
// re-sends, on-demand sync and barcode generation.
type MessageHandler struct {
	broadcast  *broadcast.Service
	sync       *regsync.Service
	dispatcher *dispatch.Dispatcher
	tracking   tracking.Store
	history    broadcast.HistoryStore
	pass       pass.Renderer
	provider   provider.Provider
	logger     *slog.Logger
}

func NewMessageHandler(
	broadcastSvc *broadcast.Service,
	syncSvc *regsync.Service,
	dispatcher *dispatch.Dispatcher,
	trackingStore tracking.Store,
	history broadcast.HistoryStore,
	passRenderer pass.Renderer,
	prov provider.Provider,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		broadcast:  broadcastSvc,
		sync:       syncSvc,
		dispatcher: dispatcher,
		tracking:   trackingStore,
		history:    history,
		pass:       passRenderer,
		provider:   prov,
		logger:     logger.With("handler", "messages"),
	}
}

func (h *MessageHandler) Register(r chi.Router) {
	r.Post("/api/send-message", h.SendMessage)
	r.Get("/api/sent-messages", h.SentMessages)
	r.Post("/api/sync-registrations", h.SyncRegistrations)
	r.Get("/api/generate-barcode", h.GenerateBarcode)
	r.Post("/api/send-barcode", h.SendBarcode)
	r.Post("/api/send-change-request", h.SendChangeRequest)
	r.Post("/api/logout-whatsapp", h.LogoutProvider)
}

// SendMessage runs a bulk broadcast. The request is multipart so an optional
// media file can ride along with the message.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBroadcastMedia); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid multipart request"))
		return
	}

	req := broadcast.Request{
		Text:          r.FormValue("message"),
		RecipientType: r.FormValue("recipientType"),
		Recipients:    parseRecipients(r.FormValue("recipients")),
	}

	if file, header, err := r.FormFile("media"); err == nil {
		defer file.Close()
		media, err := io.ReadAll(io.LimitReader(file, maxBroadcastMedia))
		if err != nil {
			WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "Failed to read media"))
			return
		}
		req.Media = media
		req.MediaName = header.Filename
	}

	result, err := h.broadcast.Send(r.Context(), req)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error()))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

// parseRecipients accepts either a JSON array or a comma separated list; the
// console has sent both over its lifetime.
func parseRecipients(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	var list []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

func (h *MessageHandler) SentMessages(w http.ResponseWriter, r *http.Request) {
	recent, err := h.history.Recent(r.Context(), 50)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load broadcast history"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "messages": recent})
}

func (h *MessageHandler) SyncRegistrations(w http.ResponseWriter, r *http.Request) {
	synced, err := h.sync.Run(r.Context())
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Sync failed"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "synced": synced})
}

func (h *MessageHandler) GenerateBarcode(w http.ResponseWriter, r *http.Request) {
	registrationNo := r.URL.Query().Get("registration_no")
	if registrationNo == "" {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "registration_no is required"))
		return
	}

	img, err := h.pass.Render(registrationNo)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to render pass"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="housing-pass-%s.png"`, registrationNo))
	_, _ = w.Write(img)
}

func (h *MessageHandler) SendBarcode(w http.ResponseWriter, r *http.Request) {
	h.resend(w, r, models.StageBarcode)
}

func (h *MessageHandler) SendChangeRequest(w http.ResponseWriter, r *http.Request) {
	h.resend(w, r, models.StageChangeRequest)
}

// resend manually triggers one stage for one registration. The same claim and
// bookkeeping path as the automatic loop applies, so a manual trigger can
// never double-send.
func (h *MessageHandler) resend(w http.ResponseWriter, r *http.Request, stage models.Stage) {
	var req struct {
		RegistrationNo string `json:"registration_no"`
		Mobile         string `json:"mobile"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.RegistrationNo == "" && req.Mobile == "" {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "registration_no or mobile is required"))
		return
	}

	ctx := r.Context()
	record, err := h.tracking.FindByNoOrMobile(ctx, req.RegistrationNo, req.Mobile)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "Registration not found"))
		return
	}
	if record.Stage(stage).Sent {
		WriteError(w, dErrors.Wrap(sentinel.ErrAlreadySent, dErrors.CodeConflict,
			"Message already sent for this registration"))
		return
	}

	h.dispatcher.Deliver(ctx, record, stage)

	// Re-read the row to report what actually happened.
	record, err = h.tracking.FindByNoOrMobile(ctx, req.RegistrationNo, req.Mobile)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to confirm delivery"))
		return
	}
	state := record.Stage(stage)
	if !state.Sent {
		WriteJSON(w, http.StatusOK, map[string]any{
			"success":     false,
			"message":     "Send failed; see retry counter",
			"retry_count": state.RetryCount,
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *MessageHandler) LogoutProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Logout(r.Context()); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "Failed to log out of the provider"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
