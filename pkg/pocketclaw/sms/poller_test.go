package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway serves a scripted inbox and records sent messages.
type fakeGateway struct {
	device.Gateway
	inbox   []device.InboxMessage
	listErr error
	sent    []string
}

func (f *fakeGateway) ListSMS(_ context.Context, _ int) ([]device.InboxMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.inbox, nil
}

func (f *fakeGateway) SendSMS(_ context.Context, number, message string) error {
	f.sent = append(f.sent, number+"|"+message)
	return nil
}

func newTestPoller(t *testing.T, gw *fakeGateway) *Poller {
	t.Helper()
	dir := t.TempDir()
	contacts, err := memory.NewStore(filepath.Join(dir, "user_profile.json"), "+4799887766", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPoller(gw, contacts, filepath.Join(dir, "state.json"), "+4799887766", 20, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSyncInboxFastForwards(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 10, Number: "+4799887766", Body: "old command", Type: "inbox"},
		{ID: 12, Number: "+4711111111", Body: "old chatter", Type: "inbox"},
		{ID: 15, Number: "+4799887766", Body: "sent by me", Type: "sent"},
	}}
	p := newTestPoller(t, gw)

	p.SyncInbox(context.Background())

	// Everything at or below the watermark is ignored afterward.
	if _, ok := p.CheckForCommand(context.Background()); ok {
		t.Error("old messages processed after sync")
	}
	if len(gw.sent) != 0 {
		t.Errorf("sync triggered notifications: %v", gw.sent)
	}
}

func TestSyncInboxFailureBlocksHistory(t *testing.T) {
	gw := &fakeGateway{listErr: fmt.Errorf("bridge down")}
	p := newTestPoller(t, gw)

	p.SyncInbox(context.Background())

	// Bridge recovers with messages that predate the parked watermark.
	gw.listErr = nil
	gw.inbox = []device.InboxMessage{
		{ID: 500, Number: "+4799887766", Body: "stale", Type: "inbox"},
	}
	if _, ok := p.CheckForCommand(context.Background()); ok {
		t.Error("stale message processed after failed sync")
	}
}

func TestCheckForCommandReturnsOwnerMessage(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 3, Number: "+47 99 88 77 66", Body: "check the battery", Type: "inbox"},
	}}
	p := newTestPoller(t, gw)

	body, ok := p.CheckForCommand(context.Background())
	if !ok {
		t.Fatal("owner message not detected")
	}
	if body != "check the battery" {
		t.Errorf("body = %q", body)
	}

	// Same message must not be returned twice.
	if _, ok := p.CheckForCommand(context.Background()); ok {
		t.Error("message processed twice")
	}
}

func TestCheckForCommandProcessesInIDOrder(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 9, Number: "+4799887766", Body: "second", Type: "inbox"},
		{ID: 4, Number: "+4799887766", Body: "first", Type: "inbox"},
	}}
	p := newTestPoller(t, gw)

	body, ok := p.CheckForCommand(context.Background())
	if !ok || body != "first" {
		t.Errorf("got %q, want the lowest unseen ID first", body)
	}
	body, ok = p.CheckForCommand(context.Background())
	if !ok || body != "second" {
		t.Errorf("got %q, want second", body)
	}
}

func TestCheckForCommandNotifiesOwnerOfStrangers(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 5, Number: "+4711223344", Body: strings.Repeat("long text ", 20), Type: "inbox"},
	}}
	p := newTestPoller(t, gw)

	if _, ok := p.CheckForCommand(context.Background()); ok {
		t.Fatal("stranger message returned as command")
	}
	if len(gw.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(gw.sent))
	}
	notification := gw.sent[0]
	if !strings.HasPrefix(notification, "+4799887766|") {
		t.Errorf("notification target = %q, want owner", notification)
	}
	if !strings.Contains(notification, "New SMS from +4711223344") {
		t.Errorf("notification = %q", notification)
	}
	if !strings.Contains(notification, "...") {
		t.Error("long body not truncated in notification")
	}
}

func TestCheckForCommandUsesContactNameInNotification(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 5, Number: "+4711223344", Body: "hi", Type: "inbox"},
	}}
	p := newTestPoller(t, gw)
	if _, err := p.contacts.UpsertContact(memory.Contact{
		Number:       "+4711223344",
		Name:         "Kari",
		Relationship: "boss",
	}); err != nil {
		t.Fatal(err)
	}

	p.CheckForCommand(context.Background())

	if len(gw.sent) != 1 || !strings.Contains(gw.sent[0], "Kari (boss)") {
		t.Errorf("notification = %v", gw.sent)
	}
}

func TestCheckForCommandSkipsNonInbox(t *testing.T) {
	gw := &fakeGateway{inbox: []device.InboxMessage{
		{ID: 7, Number: "+4799887766", Body: "draft", Type: "draft"},
		{ID: 8, Number: "+4799887766", Body: "sent", Type: "sent"},
	}}
	p := newTestPoller(t, gw)

	if _, ok := p.CheckForCommand(context.Background()); ok {
		t.Error("non-inbox message treated as command")
	}
}

func TestOwnerMatchingBySuffix(t *testing.T) {
	gw := &fakeGateway{}
	p := newTestPoller(t, gw)

	cases := []struct {
		sender string
		want   bool
	}{
		{"+4799887766", true},
		{"4799887766", true},
		{"99887766", true},
		{"+47 99 88 77 66", true},
		{"0047 99887766", true},
		{"+4799887767", false},
		{"+4711223344", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := p.isFromOwner(tc.sender); got != tc.want {
			t.Errorf("isFromOwner(%q) = %v, want %v", tc.sender, got, tc.want)
		}
	}
}
