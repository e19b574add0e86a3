package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// SQSAPI defines the subset of the SQS API we use.
type SQSAPI interface {
	ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ListQueueTags(ctx context.Context, params *sqs.ListQueueTagsInput, optFns ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error)
}

// SNSAPI defines the subset of the SNS API we use.
type SNSAPI interface {
	ListTopics(ctx context.Context, params *sns.ListTopicsInput, optFns ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, params *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
	GetSubscriptionAttributes(ctx context.Context, params *sns.GetSubscriptionAttributesInput, optFns ...func(*sns.Options)) (*sns.GetSubscriptionAttributesOutput, error)
	ListTagsForResource(ctx context.Context, params *sns.ListTagsForResourceInput, optFns ...func(*sns.Options)) (*sns.ListTagsForResourceOutput, error)
}

// Client collects SQS queues and SNS topics into the shared queue family.
type Client struct {
	sqs SQSAPI
	sns SNSAPI
}

func NewClient(sqsAPI SQSAPI, snsAPI SNSAPI) *Client {
	return &Client{sqs: sqsAPI, sns: snsAPI}
}

// Collect drains queues then topics. A queue whose attribute lookup fails is
// skipped with a warning; the rest of the batch still runs.
func (c *Client) Collect(ctx context.Context) ([]domain.Resource, error) {
	resources, err := c.collectQueues(ctx)
	if err != nil {
		return nil, err
	}
	topics, err := c.collectTopics(ctx)
	if err != nil {
		return nil, err
	}
	return append(resources, topics...), nil
}

func (c *Client) collectQueues(ctx context.Context) ([]domain.Resource, error) {
	logger := zerolog.Ctx(ctx)

	var resources []domain.Resource
	var nextToken *string
	for {
		out, err := c.sqs.ListQueues(ctx, &sqs.ListQueuesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("ListQueues: %w", err)
		}

		for _, url := range out.QueueUrls {
			attrs, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
				QueueUrl:       aws.String(url),
				AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
			})
			if err != nil {
				logger.Warn().Err(err).Str("queue", url).Msg("attribute lookup failed, skipping queue")
				continue
			}
			q := queueFromAttributes(url, attrs.Attributes)
			q.Tags = c.queueTags(ctx, url)
			resources = append(resources, q)
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	logger.Debug().Int("queues", len(resources)).Msg("queue collection complete")
	return resources, nil
}

func queueFromAttributes(url string, attrs map[string]string) domain.Queue {
	arn := attrs["QueueArn"]
	name := arn[strings.LastIndex(arn, ":")+1:]
	if name == "" {
		name = url[strings.LastIndex(url, "/")+1:]
	}
	return domain.Queue{
		URL:                      url,
		ARN:                      arn,
		Name:                     name,
		IsFIFO:                   attrs["FifoQueue"] == "true" || strings.HasSuffix(name, ".fifo"),
		Redrive:                  parseRedrivePolicy(attrs["RedrivePolicy"]),
		VisibilityTimeoutSeconds: atoi(attrs["VisibilityTimeout"]),
		RetentionSeconds:         atoi(attrs["MessageRetentionPeriod"]),
		ReceiveWaitSeconds:       atoi(attrs["ReceiveMessageWaitTimeSeconds"]),
		ContentDeduplication:     attrs["ContentBasedDeduplication"] == "true",
		ApproxMessages:           atoi(attrs["ApproximateNumberOfMessages"]),
		ApproxNotVisible:         atoi(attrs["ApproximateNumberOfMessagesNotVisible"]),
		ApproxDelayed:            atoi(attrs["ApproximateNumberOfMessagesDelayed"]),
		LastModified:             epochTime(attrs["LastModifiedTimestamp"]),
		CreatedAt:                epochTime(attrs["CreatedTimestamp"]),
	}
}

// parseRedrivePolicy decodes the redrive policy attribute. maxReceiveCount
// arrives as either a JSON number or a quoted string depending on how the
// queue was created; both forms are accepted. A malformed policy is treated
// as absent.
func parseRedrivePolicy(raw string) *domain.RedrivePolicy {
	if raw == "" {
		return nil
	}
	var parsed struct {
		DeadLetterTargetARN string          `json:"deadLetterTargetArn"`
		MaxReceiveCount     json.RawMessage `json:"maxReceiveCount"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}
	count := atoi(strings.Trim(string(parsed.MaxReceiveCount), `"`))
	return &domain.RedrivePolicy{
		DeadLetterTargetARN: parsed.DeadLetterTargetARN,
		MaxReceiveCount:     count,
	}
}

func (c *Client) queueTags(ctx context.Context, url string) map[string]string {
	out, err := c.sqs.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(url)})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("queue", url).Msg("tag lookup failed, assuming no tags")
		return nil
	}
	return out.Tags
}

func (c *Client) collectTopics(ctx context.Context) ([]domain.Resource, error) {
	logger := zerolog.Ctx(ctx)

	var resources []domain.Resource
	var nextToken *string
	for {
		out, err := c.sns.ListTopics(ctx, &sns.ListTopicsInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("ListTopics: %w", err)
		}

		for _, t := range out.Topics {
			arn := aws.ToString(t.TopicArn)
			topic := domain.Topic{
				ARN:           arn,
				Name:          arn[strings.LastIndex(arn, ":")+1:],
				Subscriptions: c.topicSubscriptions(ctx, arn),
				Tags:          c.topicTags(ctx, arn),
			}
			resources = append(resources, topic)
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	logger.Debug().Int("topics", len(resources)).Msg("topic collection complete")
	return resources, nil
}

func (c *Client) topicSubscriptions(ctx context.Context, topicARN string) []domain.TopicSubscription {
	var subs []domain.TopicSubscription
	var nextToken *string
	for {
		out, err := c.sns.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
			TopicArn:  aws.String(topicARN),
			NextToken: nextToken,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topicARN).Msg("subscription lookup failed")
			return subs
		}
		for _, s := range out.Subscriptions {
			subARN := aws.ToString(s.SubscriptionArn)
			sub := domain.TopicSubscription{
				ARN:      subARN,
				Protocol: aws.ToString(s.Protocol),
				Endpoint: aws.ToString(s.Endpoint),
			}
			// Unconfirmed subscriptions have no real ARN and no attributes.
			if subARN == "PendingConfirmation" {
				sub.PendingConfirmation = true
			} else {
				sub.HasFilterPolicy = c.hasFilterPolicy(ctx, subARN)
			}
			subs = append(subs, sub)
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return subs
}

func (c *Client) hasFilterPolicy(ctx context.Context, subARN string) bool {
	out, err := c.sns.GetSubscriptionAttributes(ctx, &sns.GetSubscriptionAttributesInput{
		SubscriptionArn: aws.String(subARN),
	})
	if err != nil {
		// Assume a policy exists rather than flag on a degraded lookup.
		zerolog.Ctx(ctx).Warn().Err(err).Str("subscription", subARN).Msg("subscription attribute lookup failed")
		return true
	}
	return out.Attributes["FilterPolicy"] != ""
}

func (c *Client) topicTags(ctx context.Context, arn string) map[string]string {
	out, err := c.sns.ListTagsForResource(ctx, &sns.ListTagsForResourceInput{ResourceArn: aws.String(arn)})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", arn).Msg("tag lookup failed, assuming no tags")
		return nil
	}
	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func epochTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
