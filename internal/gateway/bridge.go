package gateway

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/agent"
	"github.com/voxhollow/parley/internal/conversation"
	"github.com/voxhollow/parley/internal/dispatch"
)

// Bridge turns normalized platform messages into agent requests and relays
// the responses back through the gateway. Each platform channel maps to one
// stable conversation, so platform chats keep their memory across turns.
type Bridge struct {
	dispatcher *dispatch.Dispatcher
	registry   *conversation.Registry
	gw         *Gateway
	logger     *zap.Logger
}

// NewBridge creates a Bridge. Wire it with gw.SetHandler(bridge.Handle)
// before registering adapters.
func NewBridge(d *dispatch.Dispatcher, reg *conversation.Registry, gw *Gateway, logger *zap.Logger) *Bridge {
	return &Bridge{dispatcher: d, registry: reg, gw: gw, logger: logger}
}

// Handle processes one inbound platform message. Signature matches
// MessageHandler.
func (b *Bridge) Handle(msg *InboundMessage) {
	ctx := context.Background()
	b.logger.Info("gateway message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName))

	cc := agent.ConversationContext{
		UserID:         msg.UserID,
		ConversationID: channelConversationID(msg.Platform, msg.ChannelID),
		SessionID:      msg.ChannelID,
		Metadata:       map[string]string{"platform": msg.Platform},
	}
	b.registry.Touch(cc)

	resp := b.dispatcher.Handle(ctx, &agent.Request{
		Kind:    agent.KindChat,
		Content: msg.Content,
		Context: cc,
	})

	err := b.gw.Send(ctx, &OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		AgentUsed: resp.AgentUsed,
		Content:   resp.Content,
		ReplyTo:   msg.ReplyTo,
	})
	if err != nil {
		b.logger.Error("send reply failed", zap.Error(err))
	}
}

// channelConversationID derives a stable conversation id from a platform
// channel, so repeated messages in one channel share memory.
func channelConversationID(platform, channelID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(platform+":"+channelID)).String()
}
