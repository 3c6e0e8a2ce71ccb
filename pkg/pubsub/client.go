package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
)

// Client holds the Pub/Sub connection the change feed is received through.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("changes subscription name is required")
	ErrSubscriptionMissing  = errors.New("changes subscription does not exist")
)

// NewClient connects to Pub/Sub and checks that the changes subscription exists.
// Subscriptions are provisioned outside the service; a missing one is fatal.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.ChangesSubscription) == "" {
		return nil, errSubscriptionRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	sub, err := c.describeChanges(ctx)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"subscription":       sub.GetName(),
			"topic":              sub.GetTopic(),
			"ack_deadline_sec":   sub.GetAckDeadlineSeconds(),
			"exactly_once":       sub.GetEnableExactlyOnceDelivery(),
			"max_outstanding":    cfg.MaxOutstanding,
			"receive_goroutines": cfg.ReceiveGoroutines,
		})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) describeChanges(ctx context.Context) (*pubsubpb.Subscription, error) {
	fullName := c.subscriptionResourceName(c.cfg.ChangesSubscription)
	if fullName == "" {
		return nil, errSubscriptionRequired
	}
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionMissing, fullName)
		}
		return nil, fmt.Errorf("checking subscription %q: %w", fullName, err)
	}
	return sub, nil
}

// ChangesSubscription returns the subscriber for row change notifications
// with the configured flow control applied.
func (c *Client) ChangesSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.subscriptionResourceName(c.cfg.ChangesSubscription)
	if fullName == "" {
		return nil
	}
	sub := c.client.Subscriber(fullName)
	applyReceiveSettings(&sub.ReceiveSettings, c.cfg)
	return sub
}

func applyReceiveSettings(rs *pubsub.ReceiveSettings, cfg config.PubSubConfig) {
	if cfg.MaxOutstanding > 0 {
		rs.MaxOutstandingMessages = cfg.MaxOutstanding
	}
	if cfg.ReceiveGoroutines > 0 {
		rs.NumGoroutines = cfg.ReceiveGoroutines
	}
}

// Ping checks that the changes subscription is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.describeChanges(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// subscriptionResourceName accepts a bare id or a full
// projects/<p>/subscriptions/<id> name.
func (c *Client) subscriptionResourceName(name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/subscriptions/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/subscriptions/%s", c.projectID, n)
}
