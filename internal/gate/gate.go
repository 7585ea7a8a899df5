// Package gate filters inbound chat messages and dispatches the survivors
// to the conversation handler.
//
// Every message passes five stages in order: self-message filter, age
// filter, duplicate filter, spam cooldown and processing serialization.
// Media bypasses the cooldown and serialization stages but never the
// duplicate filter.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/convo"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/delivery"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/media"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

const (
	// fallbackReply answers text messages when no conversation service is
	// reachable.
	fallbackReply = "I'm temporarily unable to answer. Please try again in a few minutes."

	// mediaAck answers attachments, which the bot files but cannot read.
	mediaAck = "Thanks, I received your file. I can only answer text for now, so please describe your question in a message."
)

// dropReason labels why the gate discarded a message, for logs only.
type dropReason string

const (
	dropSelf      dropReason = "self-message"
	dropStale     dropReason = "stale"
	dropDuplicate dropReason = "duplicate"
	dropSpam      dropReason = "spam-cooldown"
	dropBusy      dropReason = "busy"
	admitted      dropReason = ""
)

// Gate holds the filter policy and the collaborators messages flow into.
type Gate struct {
	cfg      config.GateConfig
	convo    convo.Processor // nil disables AI replies
	uploader media.Uploader  // nil disables media upload
	sender   *delivery.Sender
	logger   *slog.Logger

	now func() time.Time
}

// New creates a Gate. The processor and uploader may be nil; the gate
// degrades to fallback replies and upload-free media handling.
func New(cfg config.GateConfig, processor convo.Processor, uploader media.Uploader, sender *delivery.Sender, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:      cfg,
		convo:    processor,
		uploader: uploader,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

// ageWindow returns how old an inbound message may be for this session
// right now.
//
// A session that never completed a pairing gets the strict first-connect
// window so protocol history is not replayed on first login. A session
// that was paired before may catch up on what arrived while it was
// offline, up to the recovery ceiling; beyond that, or without a known
// last activity, only the fixed long-offline window applies.
func (g *Gate) ageWindow(hasConnectedBefore bool, lastActivityAt, now time.Time) time.Duration {
	if !hasConnectedBefore {
		return g.cfg.FirstConnectWindow
	}
	if !lastActivityAt.IsZero() {
		if since := now.Sub(lastActivityAt); since < g.cfg.OfflineRecoveryCeiling {
			return since + g.cfg.CatchupBuffer
		}
	}
	return g.cfg.LongOfflineWindow
}

// admit runs the drop-only stages (1-4). Stage 5, serialization, is
// handled in Handle because it needs a release on completion.
func (g *Gate) admit(sess *registry.Session, msg *transport.Message, now time.Time) dropReason {
	if msg.FromSelf {
		return dropSelf
	}

	hasConnectedBefore, lastActivity := sess.AgePolicy()
	if age := now.Sub(msg.Timestamp); age > g.ageWindow(hasConnectedBefore, lastActivity, now) {
		return dropStale
	}

	if sess.Seen(msg.ID) {
		return dropDuplicate
	}

	if !msg.Media && sess.OnSpamCooldown(msg.ChatID, now, g.cfg.MinMessageSpacing, g.cfg.MinResponseSpacing) {
		return dropSpam
	}

	return admitted
}

// Handle gates one inbound message and, if it survives, forwards it to
// the conversation handler and delivers the reply through client. It is
// intended to run on its own goroutine; per-session ordering is already
// settled by the caller's event loop.
func (g *Gate) Handle(ctx context.Context, sess *registry.Session, client transport.Client, msg *transport.Message) {
	now := g.now()

	if reason := g.admit(sess, msg, now); reason != admitted {
		g.logger.Debug("Inbound message dropped",
			"session_id", sess.ID,
			"chat_id", msg.ChatID,
			"reason", string(reason))
		return
	}

	// Text handling is serialized per session; a message arriving while
	// another is in flight is dropped, not queued. Media proceeds
	// concurrently.
	if !msg.Media {
		if !sess.BeginProcessing() {
			g.logger.Debug("Inbound message dropped",
				"session_id", sess.ID,
				"chat_id", msg.ChatID,
				"reason", string(dropBusy))
			return
		}
		defer sess.EndProcessing()
	}

	sess.RecordInbound(msg.ChatID, now)

	if msg.Media {
		g.handleMedia(ctx, sess, client, msg)
		return
	}
	g.handleText(ctx, sess, client, msg)
}

func (g *Gate) handleText(ctx context.Context, sess *registry.Session, client transport.Client, msg *transport.Message) {
	reply := fallbackReply
	if g.convo != nil {
		resp, err := g.convo.Process(ctx, convo.Request{
			SessionID:   sess.ID,
			ChatID:      msg.ChatID,
			Text:        msg.Text,
			DisplayName: msg.SenderName,
		})
		switch {
		case err != nil:
			g.logger.Error("Conversation handler failed",
				"session_id", sess.ID,
				"chat_id", msg.ChatID,
				"error", err)
		case resp == nil:
			// Burst aggregation on the handler side; the answer comes
			// with a later message.
			return
		default:
			reply = resp.Text
		}
	}

	g.respond(ctx, sess, client, msg.ChatID, reply)
}

func (g *Gate) handleMedia(ctx context.Context, sess *registry.Session, client transport.Client, msg *transport.Message) {
	if g.uploader != nil && len(msg.Data) > 0 {
		if _, err := g.uploader.Upload(ctx, msg.SenderName, msg.ChatID, msg.Data, msg.MimeType); err != nil {
			g.logger.Warn("Media upload failed",
				"session_id", sess.ID,
				"chat_id", msg.ChatID,
				"mime_type", msg.MimeType,
				"error", err)
		}
	}

	g.respond(ctx, sess, client, msg.ChatID, mediaAck)
}

func (g *Gate) respond(ctx context.Context, sess *registry.Session, client transport.Client, chatID, text string) {
	if text == "" {
		return
	}
	err := g.sender.Deliver(ctx, func(ctx context.Context, part string) error {
		return client.Send(ctx, chatID, part)
	}, text)
	if err != nil {
		g.logger.Error("Failed to deliver reply",
			"session_id", sess.ID,
			"chat_id", chatID,
			"error", err)
		return
	}
	sess.RecordResponse(chatID, g.now())
}
