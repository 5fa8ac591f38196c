package relay

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
)

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSink sends messages through one cached publisher per topic.
type PubSubSink struct {
	source publisherSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewPubSubSink(source publisherSource) *PubSubSink {
	return &PubSubSink{source: source, publishers: map[string]*gcppubsub.Publisher{}}
}

// Send publishes msg and blocks until Pub/Sub acknowledges it. A topic with
// no publisher can never succeed and is reported as non-retryable.
func (s *PubSubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}

func (s *PubSubSink) publisher(topic string) *gcppubsub.Publisher {
	if topic == "" || s.source == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.source.Publisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// Stop flushes and stops every cached publisher.
func (s *PubSubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}

var _ Sink = (*PubSubSink)(nil)
