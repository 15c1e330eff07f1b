package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regnotify/internal/admin"
	"regnotify/internal/audit"
	"regnotify/internal/events"
	"regnotify/internal/notify/broadcast"
	"regnotify/internal/notify/dispatch"
	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/templates"
	"regnotify/internal/notify/store/tracking"
	regsync "regnotify/internal/notify/sync"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
	"regnotify/internal/stats"
	"regnotify/internal/webhook"
)

type stubProvider struct {
	mu    sync.Mutex
	texts int
	media int
}

func (p *stubProvider) Name() string                   { return "webclient" }
func (p *stubProvider) Address(mobile string) string   { return "91" + mobile + "@c.us" }
func (p *stubProvider) Connected(context.Context) bool { return true }
func (p *stubProvider) Logout(context.Context) error   { return nil }

func (p *stubProvider) SendText(context.Context, string, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts++
	return "msg", nil
}

func (p *stubProvider) SendMedia(context.Context, string, []byte, string, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.media++
	return "msg", nil
}

func (p *stubProvider) SendTemplate(context.Context, string, string, []string) (string, error) {
	return "msg", nil
}

func (p *stubProvider) mediaCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

type stubPass struct{}

func (stubPass) Render(no string) ([]byte, error) { return []byte("png:" + no), nil }

type RouterSuite struct {
	suite.Suite
	source   *registrations.InMemorySource
	tracking *tracking.InMemoryStore
	provider *stubProvider
	server   *httptest.Server
	cookie   *http.Cookie
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.source = registrations.NewInMemorySource()
	s.tracking = tracking.NewInMemoryStore()
	s.provider = &stubProvider{}

	templateStore := templates.NewInMemoryStore()
	s.Require().NoError(templates.Seed(ctx, templateStore))

	users := admin.NewInMemoryUserStore()
	s.Require().NoError(admin.SeedDefault(ctx, users, "admin", "changeme"))
	auth := admin.NewAuthService(users, "test-key", time.Hour, admin.WithAuthLogger(logger))

	settingsSvc := settings.NewService(settings.NewInMemoryStore(), settings.WithLogger(logger))
	syncSvc := regsync.New(s.source, s.tracking, nil, regsync.WithLogger(logger))
	dispatcher := dispatch.New(s.tracking, templateStore, s.source, s.provider, stubPass{}, settingsSvc,
		dispatch.WithLogger(logger), dispatch.WithSleeper(func(context.Context) {}))
	history := broadcast.NewInMemoryHistory()
	broadcastSvc := broadcast.New(s.provider, s.source, settingsSvc, history,
		broadcast.WithLogger(logger), broadcast.WithSleeper(func(context.Context) {}))
	statsSvc := stats.New(s.source, s.tracking)
	hub := events.NewInMemoryHub()
	webhookHandler := webhook.New("hook-token", audit.NopTrail{}, webhook.NewInMemoryReceipts(),
		s.tracking, s.provider, webhook.WithLogger(logger))

	router := NewRouter(RouterDeps{
		Auth:      NewAuthHandler(auth, logger),
		Console:   NewConsoleHandler(settingsSvc, templateStore, statsSvc, s.source, s.provider, hub, logger),
		Messages:  NewMessageHandler(broadcastSvc, syncSvc, dispatcher, s.tracking, history, stubPass{}, s.provider, logger),
		Webhook:   webhookHandler,
		Validator: auth,
		Logger:    logger,
	})

	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
	s.cookie = s.login("admin", "changeme")
}

func (s *RouterSuite) login(username, password string) *http.Cookie {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(s.server.URL+"/login", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "regnotify_session" {
			return cookie
		}
	}
	s.FailNow("login response carried no session cookie")
	return nil
}

func (s *RouterSuite) do(method, path string, body io.Reader, contentType string) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) decode(resp *http.Response, dst any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(dst))
}

func (s *RouterSuite) TestUnauthenticatedRequestsAreRejected() {
	s.cookie = nil
	resp := s.do(http.MethodGet, "/api/stats", nil, "")
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestBadCredentialsAreRejected() {
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, err := http.Post(s.server.URL+"/login", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestSessionReportsUsername() {
	resp := s.do(http.MethodGet, "/session", nil, "")
	var out map[string]any
	s.decode(resp, &out)
	s.Equal(true, out["authenticated"])
	s.Equal("admin", out["username"])
}

func (s *RouterSuite) TestLogoutInvalidatesSession() {
	resp := s.do(http.MethodPost, "/logout", nil, "")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/stats", nil, "")
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestConfigRoundTrip() {
	payload := `{"selected_groups":["g1@g.us"],"admin_numbers":["9111111111"]}`
	resp := s.do(http.MethodPost, "/api/save-config", strings.NewReader(payload), "application/json")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/config", nil, "")
	var out struct {
		Config settings.Settings `json:"config"`
	}
	s.decode(resp, &out)
	s.Equal([]string{"g1@g.us"}, out.Config.SelectedGroups)
	s.Equal([]string{"9111111111"}, out.Config.AdminNumbers)
}

func (s *RouterSuite) TestUpdateTemplateValidation() {
	payload := `{"template_type":"registration_confirmation","name":"C","message_text":"Hi {naem}"}`
	resp := s.do(http.MethodPost, "/api/update-template", strings.NewReader(payload), "application/json")
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode, "typoed placeholder must be rejected at save time")
}

func (s *RouterSuite) TestUpdateTemplateAndList() {
	payload := `{"template_type":"registration_confirmation","name":"Short","message_text":"Hi {name}"}`
	resp := s.do(http.MethodPost, "/api/update-template", strings.NewReader(payload), "application/json")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/templates", nil, "")
	var out struct {
		Templates []map[string]any `json:"templates"`
	}
	s.decode(resp, &out)

	found := false
	for _, tmpl := range out.Templates {
		if tmpl["template_type"] == "registration_confirmation" {
			found = true
			s.Equal("Hi {name}", tmpl["message_text"])
		}
	}
	s.True(found)
}

func (s *RouterSuite) TestSyncAndStats() {
	s.source.Add(models.Registration{ID: 1, RegistrationNo: "REG-1", Name: "Asha",
		Mobile: "9876543210", Gender: "female", Position: "member"})

	resp := s.do(http.MethodPost, "/api/sync-registrations", nil, "")
	var syncOut map[string]any
	s.decode(resp, &syncOut)
	s.Equal(float64(1), syncOut["synced"])

	resp = s.do(http.MethodGet, "/api/stats", nil, "")
	var overview stats.Overview
	s.decode(resp, &overview)
	s.Equal(1, overview.Total)
	s.Equal(1, overview.GenderStats["female"])
	s.Equal(1, overview.SyncStats.TotalSynced)
}

func (s *RouterSuite) TestGenerateBarcode() {
	resp := s.do(http.MethodGet, "/api/generate-barcode?registration_no=REG-7", nil, "")
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("image/png", resp.Header.Get("Content-Type"))
}

func (s *RouterSuite) TestManualBarcodeResend() {
	ctx := context.Background()
	s.source.Add(models.Registration{ID: 1, RegistrationNo: "REG-1", Mobile: "9876543210", Name: "Asha"})
	s.Require().NoError(s.tracking.Upsert(ctx, models.Registration{
		ID: 1, RegistrationNo: "REG-1", Mobile: "9876543210", Name: "Asha"}))

	payload := `{"registration_no":"REG-1"}`
	resp := s.do(http.MethodPost, "/api/send-barcode", strings.NewReader(payload), "application/json")
	var out map[string]any
	s.decode(resp, &out)
	s.Equal(true, out["success"])
	s.Equal(1, s.provider.mediaCount())

	// A second trigger is refused: the stage is already delivered.
	resp = s.do(http.MethodPost, "/api/send-barcode", strings.NewReader(payload), "application/json")
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal(1, s.provider.mediaCount())
}

func (s *RouterSuite) TestManualResendUnknownRegistration() {
	payload := `{"registration_no":"REG-404"}`
	resp := s.do(http.MethodPost, "/api/send-change-request", strings.NewReader(payload), "application/json")
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestBroadcastMultipart() {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	s.Require().NoError(writer.WriteField("message", "namaste"))
	s.Require().NoError(writer.WriteField("recipientType", "custom"))
	s.Require().NoError(writer.WriteField("recipients", `["9000000001","9000000002"]`))
	s.Require().NoError(writer.Close())

	resp := s.do(http.MethodPost, "/api/send-message", &buf, writer.FormDataContentType())
	var out struct {
		Success bool              `json:"success"`
		Result  *broadcast.Result `json:"result"`
	}
	s.decode(resp, &out)
	s.True(out.Success)
	s.Equal(2, out.Result.Sent)
	s.Equal("completed", out.Result.Status)
}

func (s *RouterSuite) TestWebhookIsPublic() {
	resp, err := http.Post(
		fmt.Sprintf("%s/webhook?token=hook-token", s.server.URL),
		"application/json", strings.NewReader(`{}`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
