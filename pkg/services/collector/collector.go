package collector

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/de-tools/cloud-sentry/pkg/services/audit"
	"github.com/de-tools/cloud-sentry/pkg/services/collector/logs"
	"github.com/de-tools/cloud-sentry/pkg/services/collector/netsec"
	"github.com/de-tools/cloud-sentry/pkg/services/collector/queue"
)

// Set bundles the per-family collectors built from one AWS configuration.
type Set struct {
	Logs   *logs.Client
	NetSec *netsec.Client
	Queue  *queue.Client
}

// New builds the collector set. A non-empty endpoint overrides every
// service's base endpoint, which is how local emulator runs are wired.
func New(cfg aws.Config, endpoint string) Set {
	var endpointPtr *string
	if endpoint != "" {
		endpointPtr = aws.String(endpoint)
	}

	logsAPI := cloudwatchlogs.NewFromConfig(cfg, func(o *cloudwatchlogs.Options) {
		o.BaseEndpoint = endpointPtr
	})
	metricsAPI := cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) {
		o.BaseEndpoint = endpointPtr
	})
	ec2API := ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		o.BaseEndpoint = endpointPtr
	})
	sqsAPI := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = endpointPtr
	})
	snsAPI := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = endpointPtr
	})

	return Set{
		Logs:   logs.NewClient(logsAPI, metricsAPI, ec2API),
		NetSec: netsec.NewClient(ec2API),
		Queue:  queue.NewClient(sqsAPI, snsAPI),
	}
}

// Collectors returns the set filtered to the requested families; an empty
// list means all families.
func (s Set) Collectors(families []string) []audit.Collector {
	wanted := map[string]bool{}
	for _, f := range families {
		wanted[f] = true
	}
	all := len(wanted) == 0

	var collectors []audit.Collector
	if all || wanted["log_group"] {
		collectors = append(collectors, s.Logs)
	}
	if all || wanted["network_access"] {
		collectors = append(collectors, s.NetSec)
	}
	if all || wanted["queue"] {
		collectors = append(collectors, s.Queue)
	}
	return collectors
}
