package logs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// CloudWatchLogsAPI defines the subset of the CloudWatch Logs API we use.
type CloudWatchLogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	ListTagsForResource(ctx context.Context, params *cloudwatchlogs.ListTagsForResourceInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.ListTagsForResourceOutput, error)
	DescribeMetricFilters(ctx context.Context, params *cloudwatchlogs.DescribeMetricFiltersInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeMetricFiltersOutput, error)
	DescribeSubscriptionFilters(ctx context.Context, params *cloudwatchlogs.DescribeSubscriptionFiltersInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeSubscriptionFiltersOutput, error)
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
	DescribeQueryDefinitions(ctx context.Context, params *cloudwatchlogs.DescribeQueryDefinitionsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeQueryDefinitionsOutput, error)
}

// MetricsAPI defines the subset of the CloudWatch metrics API we use.
type MetricsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// FlowLogsAPI defines the subset of the EC2 API used to resolve flow-log
// destinations.
type FlowLogsAPI interface {
	DescribeFlowLogs(ctx context.Context, params *ec2.DescribeFlowLogsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error)
}

const (
	sampleEventLimit = 10
	ingestionWindow  = 7 // days of IncomingBytes averaged
)

// Client collects CloudWatch log groups with the attributes the audit rules
// inspect. Per-group lookup failures are logged and substituted with empty
// defaults; only a failure to list log groups at all aborts collection.
type Client struct {
	api     CloudWatchLogsAPI
	metrics MetricsAPI
	flow    FlowLogsAPI
}

func NewClient(api CloudWatchLogsAPI, metrics MetricsAPI, flow FlowLogsAPI) *Client {
	return &Client{api: api, metrics: metrics, flow: flow}
}

// Collect drains every log group page and enriches each group.
func (c *Client) Collect(ctx context.Context) ([]domain.Resource, error) {
	logger := zerolog.Ctx(ctx)

	flowDestinations := c.flowLogDestinations(ctx)

	var resources []domain.Resource
	var nextToken *string
	for {
		out, err := c.api.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeLogGroups: %w", err)
		}

		for _, g := range out.LogGroups {
			name := aws.ToString(g.LogGroupName)
			lg := domain.LogGroup{
				Name:               name,
				ARN:                strings.TrimSuffix(aws.ToString(g.Arn), ":*"),
				RetentionDays:      g.RetentionInDays,
				StoredBytes:        aws.ToInt64(g.StoredBytes),
				CreatedAt:          time.UnixMilli(aws.ToInt64(g.CreationTime)),
				KMSKeyID:           aws.ToString(g.KmsKeyId),
				FlowLogTrafficType: flowDestinations[name],
			}

			lg.Tags = c.groupTags(ctx, lg.ARN)
			lg.MetricFilterCount = c.metricFilterCount(ctx, name)
			lg.Subscriptions = c.subscriptions(ctx, name)
			lg.StreamCount, lg.LastEventAt = c.streamActivity(ctx, name)
			lg.IngestedBytesPerDay = c.dailyIngestion(ctx, name)
			lg.SampledMessages = c.sampleEvents(ctx, name)

			resources = append(resources, lg)
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	logger.Debug().Int("log_groups", len(resources)).Msg("log group collection complete")
	return resources, nil
}

// ListSavedQueryNames returns one searchable string per saved query
// definition: its name, query text and referenced group names. The API has
// no server-side filter, so callers scan the whole set.
func (c *Client) ListSavedQueryNames(ctx context.Context) ([]string, error) {
	var defs []string
	var nextToken *string
	for {
		out, err := c.api.DescribeQueryDefinitions(ctx, &cloudwatchlogs.DescribeQueryDefinitionsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeQueryDefinitions: %w", err)
		}
		for _, q := range out.QueryDefinitions {
			parts := []string{aws.ToString(q.Name), aws.ToString(q.QueryString)}
			parts = append(parts, q.LogGroupNames...)
			defs = append(defs, strings.Join(parts, " "))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return defs, nil
}

func (c *Client) groupTags(ctx context.Context, arn string) map[string]string {
	out, err := c.api.ListTagsForResource(ctx, &cloudwatchlogs.ListTagsForResourceInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil {
		// Missing tags are non-fatal; the group stays in the audit.
		zerolog.Ctx(ctx).Warn().Err(err).Str("arn", arn).Msg("tag lookup failed, assuming no tags")
		return nil
	}
	return out.Tags
}

func (c *Client) metricFilterCount(ctx context.Context, name string) int {
	out, err := c.api.DescribeMetricFilters(ctx, &cloudwatchlogs.DescribeMetricFiltersInput{
		LogGroupName: aws.String(name),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log_group", name).Msg("metric filter lookup failed")
		return 0
	}
	return len(out.MetricFilters)
}

func (c *Client) subscriptions(ctx context.Context, name string) []domain.LogSubscription {
	out, err := c.api.DescribeSubscriptionFilters(ctx, &cloudwatchlogs.DescribeSubscriptionFiltersInput{
		LogGroupName: aws.String(name),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log_group", name).Msg("subscription filter lookup failed")
		return nil
	}
	subs := make([]domain.LogSubscription, 0, len(out.SubscriptionFilters))
	for _, f := range out.SubscriptionFilters {
		dest := aws.ToString(f.DestinationArn)
		subs = append(subs, domain.LogSubscription{
			Name:           aws.ToString(f.FilterName),
			DestinationARN: dest,
			Region:         regionFromARN(dest),
		})
	}
	return subs
}

func (c *Client) streamActivity(ctx context.Context, name string) (int, *time.Time) {
	out, err := c.api.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(name),
		OrderBy:      "LastEventTime",
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(50),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log_group", name).Msg("log stream lookup failed")
		return 0, nil
	}
	var last *time.Time
	for _, s := range out.LogStreams {
		if s.LastEventTimestamp == nil {
			continue
		}
		t := time.UnixMilli(*s.LastEventTimestamp)
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return len(out.LogStreams), last
}

func (c *Client) dailyIngestion(ctx context.Context, name string) float64 {
	if c.metrics == nil {
		return 0
	}
	end := time.Now()
	start := end.AddDate(0, 0, -ingestionWindow)
	out, err := c.metrics.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/Logs"),
		MetricName: aws.String("IncomingBytes"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("LogGroupName"), Value: aws.String(name)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticSum},
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log_group", name).Msg("ingestion metric lookup failed")
		return 0
	}
	var total float64
	for _, dp := range out.Datapoints {
		total += aws.ToFloat64(dp.Sum)
	}
	return total / ingestionWindow
}

func (c *Client) sampleEvents(ctx context.Context, name string) []string {
	out, err := c.api.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(name),
		Limit:        aws.Int32(sampleEventLimit),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log_group", name).Msg("event sampling failed")
		return nil
	}
	samples := make([]string, 0, len(out.Events))
	for _, e := range out.Events {
		samples = append(samples, aws.ToString(e.Message))
	}
	return samples
}

// flowLogDestinations maps log-group destination names to the flow log's
// traffic type. An API failure just means no group is treated as a flow log.
func (c *Client) flowLogDestinations(ctx context.Context) map[string]string {
	if c.flow == nil {
		return nil
	}
	destinations := map[string]string{}
	var nextToken *string
	for {
		out, err := c.flow.DescribeFlowLogs(ctx, &ec2.DescribeFlowLogsInput{NextToken: nextToken})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("flow log lookup failed")
			return destinations
		}
		for _, fl := range out.FlowLogs {
			if name := aws.ToString(fl.LogGroupName); name != "" {
				destinations[name] = string(fl.TrafficType)
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return destinations
}

func regionFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}
