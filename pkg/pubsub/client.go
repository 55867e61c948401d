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

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// Role selects which reminder resource a process depends on: the cron worker
// publishes to the topic, the notification worker drains the subscription.
type Role int

const (
	RolePublisher Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RoleConsumer {
		return "consumer"
	}
	return "publisher"
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// NewClient opens a Pub/Sub v2 client and fails fast when the resource the
// role needs is missing. Topics and subscriptions are provisioned outside
// the app.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg, role: role}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":  projectID,
			"pubsub_role": role.String(),
			"resource":    c.requiredResource(),
		}), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that the role's topic or subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	name := c.requiredResource()
	if name == "" {
		return fmt.Errorf("pubsub %s resource is not configured", c.role)
	}
	var err error
	if c.role == RoleConsumer {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	} else {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", name, err)
	}
	return nil
}

func (c *Client) requiredResource() string {
	if c.role == RoleConsumer {
		return resourceName(c.projectID, "subscriptions", c.cfg.RemindersSubscription)
	}
	return resourceName(c.projectID, "topics", c.cfg.RemindersTopic)
}

// RemindersSubscription is drained by the notification worker.
func (c *Client) RemindersSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := resourceName(c.projectID, "subscriptions", c.cfg.RemindersSubscription)
	if name == "" {
		return nil
	}
	return c.client.Subscriber(name)
}

// RemindersPublisher receives one message per due reminder offset.
func (c *Client) RemindersPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := resourceName(c.projectID, "topics", c.cfg.RemindersTopic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id to projects/<project>/<kind>/<id>. Full
// resource names pass through so a subscription can live in another project.
func resourceName(projectID, kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, id)
}
