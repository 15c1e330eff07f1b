// Package webhook receives inbound provider callbacks: delivery receipts for
// outbound messages and inbound texts that may trigger a keyword auto-reply.
// Every accepted payload is audited verbatim before any parsing.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"regnotify/internal/audit"
	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/platform/middleware"
	"regnotify/internal/provider"
)

const maxPayloadBytes = 1 << 20

// Handler serves the provider webhook endpoints.
type Handler struct {
	verifyToken string
	trail       audit.Trail
	receipts    ReceiptStore
	tracking    tracking.Store
	provider    provider.Provider
	logger      *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger.With("component", "webhook") }
}

func New(
	verifyToken string,
	trail audit.Trail,
	receipts ReceiptStore,
	trackingStore tracking.Store,
	prov provider.Provider,
	opts ...Option,
) *Handler {
	h := &Handler{
		verifyToken: verifyToken,
		trail:       trail,
		receipts:    receipts,
		tracking:    trackingStore,
		provider:    prov,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the webhook routes. The routes are public; the shared token
// is the only authentication the provider supports.
func (h *Handler) Register(r chi.Router) {
	r.Get("/webhook", h.Verify)
	r.Post("/webhook", h.Receive)
}

// Verify answers the provider's subscription handshake by echoing the
// challenge when the token matches.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && h.verifyToken != "" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// payload covers both provider generations: the hosted API nests events under
// entry/changes, the bridge posts the flattened value object directly.
type payload struct {
	Entry []struct {
		Changes []struct {
			Value eventValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
	eventValue
}

type eventValue struct {
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses"`
	Messages []struct {
		From string `json:"from"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
}

// Receive ingests one callback. The body is audited byte-for-byte before
// parsing; a malformed body is still audited.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.verifyToken != "" && r.URL.Query().Get("token") != h.verifyToken {
		h.logger.WarnContext(ctx, "webhook rejected, bad token",
			"request_id", middleware.GetRequestID(ctx))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	h.trail.Record(ctx, audit.Entry{
		Source:     h.provider.Name(),
		RemoteAddr: r.RemoteAddr,
		ReceivedAt: time.Now(),
		Payload:    json.RawMessage(body),
	})

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		h.logger.WarnContext(ctx, "unparseable webhook payload", "error", err)
		// The provider retries on non-2xx; a payload we cannot parse today
		// will not parse tomorrow either.
		w.WriteHeader(http.StatusOK)
		return
	}

	values := []eventValue{p.eventValue}
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			values = append(values, change.Value)
		}
	}
	for _, value := range values {
		h.handleValue(ctx, value)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleValue(ctx context.Context, value eventValue) {
	for _, status := range value.Statuses {
		if status.ID == "" {
			continue
		}
		if err := h.receipts.Upsert(ctx, status.ID, status.RecipientID, status.Status); err != nil {
			h.logger.ErrorContext(ctx, "failed to record receipt",
				"message_id", status.ID, "error", err)
		}
	}
	for _, msg := range value.Messages {
		h.autoReply(ctx, msg.From, msg.Text.Body)
	}
}

// autoReply answers a small set of keywords from registrants. Anything else
// is left for a human.
func (h *Handler) autoReply(ctx context.Context, from, body string) {
	text := strings.ToLower(strings.TrimSpace(body))
	if from == "" || text == "" {
		return
	}

	var reply string
	switch {
	case text == "hi" || text == "hello" || strings.HasPrefix(text, "jay"):
		reply = "Jay Swaminarayan! Reply *status* to check your registration, " +
			"or describe any correction you need."
	case text == "status":
		reply = h.statusReply(ctx, from)
	default:
		return
	}

	// Inbound "from" is already a valid send target for both generations.
	if _, err := h.provider.SendText(ctx, from, reply); err != nil {
		h.logger.WarnContext(ctx, "auto-reply failed", "to", from, "error", err)
	}
}

func (h *Handler) statusReply(ctx context.Context, from string) string {
	record, err := h.tracking.FindByNoOrMobile(ctx, "", mobileFrom(from))
	if err != nil {
		return "We could not find a registration for this number. " +
			"Please send your registration number."
	}

	var parts []string
	parts = append(parts, "Registration *"+record.RegistrationNo+"* ("+record.Name+"):")
	if record.Confirmation.Sent {
		parts = append(parts, "confirmation delivered")
	}
	if record.Barcode.Sent {
		parts = append(parts, "housing pass delivered")
	} else {
		parts = append(parts, "housing pass on the way")
	}
	return strings.Join(parts, " ")
}

// mobileFrom strips the provider suffix and country code so the sender can be
// matched against the stored 10-digit mobile.
func mobileFrom(from string) string {
	mobile := from
	if i := strings.IndexByte(mobile, '@'); i >= 0 {
		mobile = mobile[:i]
	}
	if len(mobile) > 10 {
		mobile = mobile[len(mobile)-10:]
	}
	return mobile
}
