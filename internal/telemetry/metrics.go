// Package telemetry publishes job metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"recruitfluency/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder is what the distribution job reports to. Implementations must be
// safe for concurrent use and must never fail the caller.
type Recorder interface {
	RecordIntroduction(ctx context.Context, delivered bool)
	RecordRun(ctx context.Context, state string, coachesProcessed, coachesFailed, recordsCommitted int)
}

// CloudWatchMetrics emits:
//   - IntroductionDelivery: Dims {Result}, one per delivery attempt
//   - CoachesProcessed, CoachesFailed, RecordsCommitted: Dims {State}, once per run
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Recorder = (*CloudWatchMetrics)(nil)

func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordIntroduction(ctx context.Context, delivered bool) {
	result := "success"
	if !delivered {
		result = "failure"
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricIntroductionDelivery),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimResult), Value: aws.String(result)},
		},
	})
}

func (m *CloudWatchMetrics) RecordRun(ctx context.Context, state string, coachesProcessed, coachesFailed, recordsCommitted int) {
	dims := []cwtypes.Dimension{{Name: aws.String(types.DimState), Value: aws.String(state)}}
	datum := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		}
	}
	m.put(ctx,
		datum(types.MetricCoachesProcessed, coachesProcessed),
		datum(types.MetricCoachesFailed, coachesFailed),
		datum(types.MetricRecordsCommitted, recordsCommitted),
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish metrics",
			"namespace", m.namespace,
			"metric", aws.ToString(data[0].MetricName),
			"error", err.Error(),
		)
	}
}

// Noop discards everything. Used when METRICS_ENABLED=false.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordIntroduction(context.Context, bool) {}
func (Noop) RecordRun(context.Context, string, int, int, int) {}
