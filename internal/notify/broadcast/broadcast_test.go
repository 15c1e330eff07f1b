package broadcast

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regnotify/internal/notify/models"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
)

// fakeProvider records sends and fails selected targets.
type fakeProvider struct {
	mu          sync.Mutex
	texts       map[string]string
	media       map[string]string
	failTargets map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		texts:       make(map[string]string),
		media:       make(map[string]string),
		failTargets: make(map[string]error),
	}
}

func (p *fakeProvider) Name() string                   { return "fake" }
func (p *fakeProvider) Address(mobile string) string   { return "91" + mobile + "@c.us" }
func (p *fakeProvider) Connected(context.Context) bool { return true }
func (p *fakeProvider) Logout(context.Context) error   { return nil }

func (p *fakeProvider) SendText(_ context.Context, to, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failTargets[to]; err != nil {
		return "", err
	}
	p.texts[to] = text
	return "msg", nil
}

func (p *fakeProvider) SendMedia(_ context.Context, to string, _ []byte, filename, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failTargets[to]; err != nil {
		return "", err
	}
	p.media[to] = filename
	return "msg", nil
}

func (p *fakeProvider) SendTemplate(context.Context, string, string, []string) (string, error) {
	return "", nil
}

type fixture struct {
	provider *fakeProvider
	source   *registrations.InMemorySource
	settings *settings.Service
	history  *InMemoryHistory
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: newFakeProvider(),
		source:   registrations.NewInMemorySource(),
		settings: settings.NewService(settings.NewInMemoryStore()),
		history:  NewInMemoryHistory(),
	}
	f.svc = New(f.provider, f.source, f.settings, f.history,
		WithSleeper(func(context.Context) {}))
	return f
}

func TestBroadcastToCustomRecipients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.svc.Send(ctx, Request{
		Text:          "hello",
		RecipientType: RecipientCustom,
		Recipients:    []string{"9000000001", "9000000002", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total, "blank recipients are dropped")
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "hello", f.provider.texts["919000000001@c.us"])

	recent, err := f.history.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "completed", recent[0].Status)
	assert.Len(t, recent[0].Recipients, 2)
}

func TestCustomRecipientsMustBeTenDigits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.svc.Send(ctx, Request{
		Text:          "hello",
		RecipientType: RecipientCustom,
		Recipients: []string{
			"9000000001",      // valid
			" 9000000002 ",    // valid once trimmed
			"12345",           // too short
			"98765abcde",      // non-digits
			"919000000003",    // country code already prefixed
			"+919000000004",   // international format
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total, "only bare ten-digit numbers are accepted")
	assert.Equal(t, 2, result.Sent)
	assert.Contains(t, f.provider.texts, "919000000001@c.us")
	assert.Contains(t, f.provider.texts, "919000000002@c.us")
	assert.NotContains(t, f.provider.texts, "9112345@c.us")
}

func TestBroadcastToAllRegistrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.Add(models.Registration{ID: 1, Mobile: "9000000001"})
	f.source.Add(models.Registration{ID: 2, Mobile: "9000000002"})
	f.source.Add(models.Registration{ID: 3, Mobile: "9000000001"}) // duplicate number

	result, err := f.svc.Send(ctx, Request{Text: "hi", RecipientType: RecipientAll})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total, "duplicate mobiles are sent once")
}

func TestBroadcastToGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.settings.Update(ctx, settings.Settings{
		SelectedGroups: []string{"group-1@g.us", "group-2@g.us"},
	}))

	result, err := f.svc.Send(ctx, Request{Text: "hi", RecipientType: RecipientGroups})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Contains(t, f.provider.texts, "group-1@g.us")
	assert.Contains(t, f.provider.texts, "group-2@g.us")
}

func TestBroadcastMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.svc.Send(ctx, Request{
		Media:         []byte("png"),
		MediaName:     "flyer.png",
		Text:          "see attached",
		RecipientType: RecipientCustom,
		Recipients:    []string{"9000000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, "flyer.png", f.provider.media["919000000001@c.us"])
}

func TestFailedRecipientIsReportedNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.failTargets["919000000002@c.us"] = fmt.Errorf("number not on whatsapp")

	result, err := f.svc.Send(ctx, Request{
		Text:          "hi",
		RecipientType: RecipientCustom,
		Recipients:    []string{"9000000001", "9000000002", "9000000003"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "partial", result.Status)

	require.Len(t, result.Results, 3)
	assert.True(t, result.Results[0].OK)
	assert.False(t, result.Results[1].OK)
	assert.Contains(t, result.Results[1].Error, "not on whatsapp")
	assert.True(t, result.Results[2].OK, "one failure must not stop the rest")
}

func TestBroadcastValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Send(ctx, Request{RecipientType: RecipientCustom, Recipients: []string{"9"}})
	assert.Error(t, err, "empty message is rejected")

	_, err = f.svc.Send(ctx, Request{Text: "hi", RecipientType: "everyone"})
	assert.Error(t, err, "unknown recipient type is rejected")

	_, err = f.svc.Send(ctx, Request{Text: "hi", RecipientType: RecipientGroups})
	assert.Error(t, err, "no configured groups means no targets")
}

func TestProgressEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var mu sync.Mutex
	var events []map[string]any
	f.svc.events = publisherFunc(func(_ context.Context, name string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		if name == "broadcast_progress" {
			events = append(events, payload.(map[string]any))
		}
	})

	_, err := f.svc.Send(ctx, Request{
		Text:          "hi",
		RecipientType: RecipientCustom,
		Recipients:    []string{"9000000001", "9000000002"},
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0]["current"])
	assert.Equal(t, 2, events[1]["current"])
	assert.Equal(t, 2, events[1]["total"])
}

type publisherFunc func(ctx context.Context, event string, payload any)

func (f publisherFunc) Publish(ctx context.Context, event string, payload any) {
	f(ctx, event, payload)
}
