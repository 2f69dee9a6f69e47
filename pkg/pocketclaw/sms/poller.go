// Package sms watches the phone's inbox for owner instructions. The
// poller keeps a high-water mark of the last seen message ID; owner
// messages become instructions, anything else triggers a short
// notification to the owner.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/device"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/storage"
)

// ownerSuffixLen is how many trailing digits must match for a sender
// to count as the owner. Carriers disagree about country-code
// prefixes; the tail of the number is stable.
const ownerSuffixLen = 8

// maxNotificationLen caps how much of a third-party message is quoted
// in the owner notification.
const maxNotificationLen = 100

// syncFailureWatermark blocks all history when the startup sync can't
// read the inbox; better to miss commands than replay stale ones.
const syncFailureWatermark = 999999999

// State is the poller's persisted position in the inbox.
type State struct {
	LastCheckedSMSID int `json:"last_checked_sms_id"`
}

// Poller scans the inbox for new messages.
type Poller struct {
	gateway    device.Gateway
	contacts   *memory.Store
	state      *storage.Document[State]
	owner      string
	fetchLimit int
	logger     *slog.Logger
}

// NewPoller creates an inbox poller. statePath is where the high-water
// mark is persisted across restarts.
func NewPoller(gw device.Gateway, contacts *memory.Store, statePath, ownerNumber string, fetchLimit int, logger *slog.Logger) (*Poller, error) {
	stateDoc, err := storage.NewDocument[State](statePath)
	if err != nil {
		return nil, err
	}
	if fetchLimit <= 0 {
		fetchLimit = 20
	}
	return &Poller{
		gateway:    gw,
		contacts:   contacts,
		state:      stateDoc,
		owner:      ownerNumber,
		fetchLimit: fetchLimit,
		logger:     logger.With("component", "sms"),
	}, nil
}

// SyncInbox fast-forwards the high-water mark past everything already
// in the inbox, so messages that arrived while the agent was down are
// ignored rather than replayed. When the inbox can't be read, the mark
// is parked high: missing a command beats re-running stale ones.
func (p *Poller) SyncInbox(ctx context.Context) {
	state := p.state.Load(State{})

	messages, err := p.gateway.ListSMS(ctx, p.fetchLimit)
	if err != nil {
		p.logger.Error("inbox sync failed, blocking message history", "error", err)
		state.LastCheckedSMSID = syncFailureWatermark
		p.saveState(state)
		return
	}

	maxID := 0
	for _, msg := range messages {
		if msg.IsInbox() && msg.ID > maxID {
			maxID = msg.ID
		}
	}
	state.LastCheckedSMSID = maxID
	p.saveState(state)
	p.logger.Info("inbox synced", "watermark", maxID)
}

// CheckForCommand scans for new inbox messages in ID order. The first
// new message from the owner is returned as an instruction and the
// scan stops there; messages from anyone else advance the mark and
// notify the owner. Returns false when there is nothing to process.
func (p *Poller) CheckForCommand(ctx context.Context) (string, bool) {
	messages, err := p.gateway.ListSMS(ctx, p.fetchLimit)
	if err != nil {
		p.logger.Warn("inbox check failed", "error", err)
		return "", false
	}
	if len(messages) == 0 {
		return "", false
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	state := p.state.Load(State{})
	for _, msg := range messages {
		if !msg.IsInbox() || msg.ID <= state.LastCheckedSMSID {
			continue
		}

		state.LastCheckedSMSID = msg.ID
		p.saveState(state)

		if p.isFromOwner(msg.Number) {
			p.logger.Info("owner instruction received", "id", msg.ID, "chars", len(msg.Body))
			return msg.Body, true
		}
		p.notifyOwner(ctx, msg.Number, msg.Body)
	}
	return "", false
}

// isFromOwner matches the sender against the owner number by trailing
// digits.
func (p *Poller) isFromOwner(sender string) bool {
	suffix := p.owner
	if len(suffix) > ownerSuffixLen {
		suffix = suffix[len(suffix)-ownerSuffixLen:]
	}
	if suffix == "" {
		return false
	}
	sender = strings.ReplaceAll(sender, " ", "")
	return strings.HasSuffix(sender, suffix)
}

// notifyOwner forwards a short summary of a third-party message to the
// owner, with the sender resolved against the contact list.
func (p *Poller) notifyOwner(ctx context.Context, sender, body string) {
	senderInfo := p.contacts.DescribeSender(sender)

	quoted := body
	if len(quoted) > maxNotificationLen {
		quoted = quoted[:maxNotificationLen] + "..."
	}
	notification := fmt.Sprintf("📩 New SMS from %s: %s", senderInfo, quoted)

	if err := p.gateway.SendSMS(ctx, p.owner, notification); err != nil {
		p.logger.Warn("owner notification failed", "sender", sender, "error", err)
		return
	}
	p.logger.Info("owner notified of sms", "sender", senderInfo)
}

func (p *Poller) saveState(state State) {
	if err := p.state.Save(state); err != nil {
		p.logger.Error("persisting poller state failed", "error", err)
	}
}
