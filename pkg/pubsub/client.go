// Package pubsub wraps the Pub/Sub v2 client with the topic and
// subscription names the booking pipeline uses.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/gcp"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

// ErrMissing reports a topic or subscription that does not exist.
var ErrMissing = errors.New("pubsub resource does not exist")

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds one project's Pub/Sub connection and the bookings topic the
// health check watches.
type Client struct {
	client  *pubsub.Client
	project string
	topic   string
}

// NewClient connects to Pub/Sub and checks the bookings topic exists.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	c, err := connect(ctx, gcpCfg.ProjectID, cfg.BookingsTopic, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub client initialized")
	}
	return c, nil
}

func connect(ctx context.Context, project, topic string, opts ...option.ClientOption) (*Client, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, project: project, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return c, nil
}

// EnsureSubscriptionExists fails with ErrMissing when the subscription is absent.
func (c *Client) EnsureSubscriptionExists(ctx context.Context, name string) error {
	return c.lookup(ctx, "subscriptions", name, func(ctx context.Context, full string) error {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		return err
	})
}

// Ping checks the bookings topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.lookup(ctx, "topics", c.topicName(), func(ctx context.Context, full string) error {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		return err
	})
}

func (c *Client) topicName() string {
	if c == nil {
		return ""
	}
	return c.topic
}

func (c *Client) lookup(ctx context.Context, kind, name string, get func(context.Context, string) error) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	full := resourceName(c.project, kind, name)
	if full == "" {
		return fmt.Errorf("%s name not configured", strings.TrimSuffix(kind, "s"))
	}
	return describeLookupError(strings.TrimSuffix(kind, "s"), name, get(ctx, full))
}

func describeLookupError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q: %w", kind, name, ErrMissing)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscriber returns a handle for a subscription id or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if full := c.handleName("subscriptions", name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if full := c.handleName("topics", name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) handleName(kind, name string) string {
	if c == nil || c.client == nil {
		return ""
	}
	return resourceName(c.project, kind, name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id into projects/<p>/<kind>/<id>. Names that
// are already fully qualified pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/"):
		return n
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/" + kind + "/" + n
}
