package consumer

import (
	"context"
	"log/slog"

	"conveyr/internal/platform/kafka/consumer"
)

// TopicHandler processes messages from one topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router fans a single consumer group out across the compliance and
// operations topics, dispatching each message by its topic. Topics
// without a registered handler fall through to the fallback.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds a handler to a topic. Not safe to call after the
// consumer starts.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if handler, ok := r.handlers[msg.Topic]; ok {
		return handler.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.Warn("no handler for topic, skipping message",
		"topic", msg.Topic,
		"key", string(msg.Key),
	)
	return nil // commit so the record is not redelivered
}
