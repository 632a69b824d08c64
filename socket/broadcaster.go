package socket

import (
	log "github.com/sirupsen/logrus"
)

// Topic families used by the board sync protocol.
const (
	boardTopicPrefix    = "board:"
	watchingTopicPrefix = "watching:"
	userTopicPrefix     = "user:"
)

func boardTopic(boardID string) string {
	return boardTopicPrefix + boardID
}

// Broadcaster fans events out to topic subscribers. Delivery is best-effort
// and fire-and-forget: nothing is retried, persisted, or waited on.
type Broadcaster struct {
	registry *Registry
	log      *log.Logger
}

// NewBroadcaster creates a Broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Broadcaster{registry: registry, log: logger}
}

// Publish delivers the event to every subscriber of the topic except, when
// non-empty, the originating connection.
func (b *Broadcaster) Publish(topic, kind string, payload any, excludeConnID string) {
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		b.log.WithFields(log.Fields{"event": kind, "topic": topic}).Errorf("encode broadcast: %v", err)
		return
	}
	subs := b.registry.Subscribers(topic, excludeConnID)
	delivered := 0
	for _, sub := range subs {
		if sub.Enqueue(frame) {
			delivered++
		} else {
			b.log.WithFields(log.Fields{"event": kind, "conn_id": sub.ConnID()}).Warn("dropping frame for slow or closed connection")
		}
	}
	b.log.WithFields(log.Fields{"event": kind, "topic": topic, "delivered": delivered}).Debug("broadcast")
}

// EmitToUser delivers the event directly to the identity's connection. When
// the user is offline the call is a silent no-op.
func (b *Broadcaster) EmitToUser(identityID, kind string, payload any) {
	sub := b.registry.FindByIdentity(identityID)
	if sub == nil {
		b.log.WithFields(log.Fields{"event": kind, "user_id": identityID}).Debug("no active connection for user")
		return
	}
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		b.log.WithField("event", kind).Errorf("encode direct emit: %v", err)
		return
	}
	sub.Enqueue(frame)
}

// EmitAll delivers the event to every live connection, excluding
// excludeConnID when non-empty.
func (b *Broadcaster) EmitAll(kind string, payload any, excludeConnID string) {
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		b.log.WithField("event", kind).Errorf("encode broadcast: %v", err)
		return
	}
	for _, sub := range b.registry.All(excludeConnID) {
		_ = sub.Enqueue(frame)
	}
}
