package gateway

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/expert"
	"github.com/nidhogg/analysis-room/internal/orchestrator"
	"github.com/nidhogg/analysis-room/internal/session"
	"github.com/nidhogg/analysis-room/internal/stream"
	"github.com/nidhogg/analysis-room/internal/tts"
)

// Bridge runs inbound platform messages through the round engine and
// relays each turn back, one message per expert.
type Bridge struct {
	gw       *Gateway
	engine   *orchestrator.Engine
	sessions *session.Manager
	logger   *zap.Logger

	// conversations maps platform:channel to a conversation id so a
	// channel keeps one continuous thread.
	mu            sync.Mutex
	conversations map[string]int64
}

// NewBridge wires the gateway to the engine and installs the handler.
func NewBridge(gw *Gateway, engine *orchestrator.Engine, sessions *session.Manager, logger *zap.Logger) *Bridge {
	b := &Bridge{
		gw:            gw,
		engine:        engine,
		sessions:      sessions,
		logger:        logger,
		conversations: make(map[string]int64),
	}
	gw.SetHandler(b.handle)
	return b
}

func (b *Bridge) handle(msg *InboundMessage) {
	go b.run(context.Background(), msg)
}

func (b *Bridge) run(ctx context.Context, msg *InboundMessage) {
	key := msg.Platform + ":" + msg.ChannelID
	b.mu.Lock()
	convID := b.conversations[key]
	b.mu.Unlock()

	collector := stream.NewCollector()
	err := b.engine.RunRound(ctx, orchestrator.RoundRequest{
		Message:        msg.Content,
		ConversationID: convID,
	}, collector)
	if err != nil {
		b.logger.Warn("gateway round failed",
			zap.String("platform", msg.Platform),
			zap.String("channel", msg.ChannelID),
			zap.Error(err))
	}

	if errCopy := collector.Err(); errCopy != "" {
		b.send(ctx, msg, "", errCopy)
		return
	}

	turns := collector.Turns()
	var replyParts []string
	for _, turn := range turns {
		text := tts.StripStopTokens(turn.Text)
		if text == "" {
			continue
		}
		b.send(ctx, msg, turn.Character, text)
		replyParts = append(replyParts, text)
	}

	b.rememberConversation(key, collector)

	if b.sessions != nil && len(replyParts) > 0 {
		if err := b.sessions.Touch(ctx, key, msg.Content, strings.Join(replyParts, "\n\n")); err != nil {
			b.logger.Warn("session update failed", zap.Error(err))
		}
	}
}

// rememberConversation pins the conversation id assigned during the round.
func (b *Bridge) rememberConversation(key string, collector *stream.Collector) {
	for _, ev := range collector.Events {
		td, ok := ev.Data.(stream.TurnData)
		if !ok || td.ConversationID == 0 {
			continue
		}
		b.mu.Lock()
		b.conversations[key] = td.ConversationID
		b.mu.Unlock()
		return
	}
}

func (b *Bridge) send(ctx context.Context, msg *InboundMessage, expertID, content string) {
	err := b.gw.Send(ctx, &OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		Expert:    expertID,
		Content:   content,
		ReplyTo:   msg.ReplyTo,
	})
	if err != nil {
		b.logger.Warn("gateway send failed",
			zap.String("platform", msg.Platform),
			zap.String("expert", expertID),
			zap.Error(err))
	}
}

// personaName returns the Hebrew display name for an expert id, or empty.
func personaName(id string) string {
	info, ok := expert.Get(expert.ID(id))
	if !ok {
		return ""
	}
	return info.NameHe
}
