package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChannel is a minimal Provider whose reported status the tests control.
type stubChannel struct {
	status Status
}

func (s *stubChannel) Name() string                   { return "stub" }
func (s *stubChannel) Address(mobile string) string   { return "91" + mobile }
func (s *stubChannel) Connected(context.Context) bool { return s.status.Connected }
func (s *stubChannel) Logout(context.Context) error   { return nil }

func (s *stubChannel) SendText(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *stubChannel) SendMedia(context.Context, string, []byte, string, string) (string, error) {
	return "", nil
}

func (s *stubChannel) SendTemplate(context.Context, string, string, []string) (string, error) {
	return "", nil
}

// reportingChannel additionally implements StatusReporter.
type reportingChannel struct {
	stubChannel
}

func (r *reportingChannel) Status(context.Context) (Status, error) {
	return r.status, nil
}

type recordedEvent struct {
	name    string
	payload map[string]any
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, name string, payload any) {
	p.events = append(p.events, recordedEvent{name, payload.(map[string]any)})
}

func TestStatusWatcherPublishesTransitionsOnly(t *testing.T) {
	ctx := context.Background()
	channel := &stubChannel{status: Status{Connected: false}}
	hub := &recordingPublisher{}
	watcher := NewStatusWatcher(channel, hub, time.Second)

	// First observation is the baseline and always goes out.
	watcher.Check(ctx)
	require.Len(t, hub.events, 1)
	assert.Equal(t, "connection_status", hub.events[0].name)
	assert.Equal(t, false, hub.events[0].payload["connected"])
	assert.Equal(t, "stub", hub.events[0].payload["provider"])

	// Unchanged state stays silent.
	watcher.Check(ctx)
	watcher.Check(ctx)
	require.Len(t, hub.events, 1)

	// A flip is published once.
	channel.status.Connected = true
	watcher.Check(ctx)
	watcher.Check(ctx)
	require.Len(t, hub.events, 2)
	assert.Equal(t, true, hub.events[1].payload["connected"])
}

func TestStatusWatcherPublishesFreshQRCodes(t *testing.T) {
	ctx := context.Background()
	channel := &reportingChannel{}
	hub := &recordingPublisher{}
	watcher := NewStatusWatcher(channel, hub, time.Second)

	// Disconnected and pairing: baseline plus the code to scan.
	channel.status = Status{Connected: false, QR: "qr-one"}
	watcher.Check(ctx)
	require.Len(t, hub.events, 2)
	assert.Equal(t, "qr_code", hub.events[1].name)
	assert.Equal(t, "qr-one", hub.events[1].payload["qr"])

	// The same code is not re-announced, a rotated one is.
	watcher.Check(ctx)
	require.Len(t, hub.events, 2)
	channel.status.QR = "qr-two"
	watcher.Check(ctx)
	require.Len(t, hub.events, 3)
	assert.Equal(t, "qr-two", hub.events[2].payload["qr"])

	// Pairing completes: the connect flip goes out, no QR event.
	channel.status = Status{Connected: true}
	watcher.Check(ctx)
	require.Len(t, hub.events, 4)
	assert.Equal(t, "connection_status", hub.events[3].name)
	assert.Equal(t, true, hub.events[3].payload["connected"])
}
