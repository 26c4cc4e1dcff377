package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/creasty/defaults"

	"github.com/PDOK/bucket-usage-auditor/internal/agg"
	"github.com/PDOK/bucket-usage-auditor/internal/du"
	"github.com/PDOK/bucket-usage-auditor/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var ErrNoPushgateway = errors.New("no pushgateway url configured")

type Updater struct {
	config            Config
	aggregator        *agg.Aggregator
	registry          *prometheus.Registry
	storageUsageGauge *prometheus.GaugeVec
	filesGauge        *prometheus.GaugeVec
	lastRunDateMetric prometheus.Gauge
	bucket            string
}

type Config struct {
	PushgatewayURL  string `yaml:"pushgatewayUrl"`
	Job             string `yaml:"job" default:"bucket_usage_auditor"`
	MetricNamespace string `yaml:"metricNamespace" default:"bucket"`
	MetricSubsystem string `yaml:"metricSubsystem" default:"storage"`
	Limit           int    `yaml:"limit" default:"1000"`
}

type unmarshalledConfig Config

func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	tmp := new(unmarshalledConfig)
	if err := defaults.Set(tmp); err != nil {
		return err
	}
	if err := unmarshal(tmp); err != nil {
		return err
	}
	*c = Config(*tmp)
	return nil
}

// Enabled reports whether metrics should be pushed at all
func (c Config) Enabled() bool {
	return c.PushgatewayURL != ""
}

func NewUpdater(aggregator *agg.Aggregator, config Config) *Updater {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labelNames := aggregator.GetLabelNames()
	return &Updater{
		config:     config,
		aggregator: aggregator,
		registry:   registry,
		storageUsageGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.MetricNamespace,
			Subsystem: config.MetricSubsystem,
			Name:      "usage_bytes",
		}, labelNames),
		filesGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.MetricNamespace,
			Subsystem: config.MetricSubsystem,
			Name:      "files",
		}, labelNames),
		lastRunDateMetric: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.MetricNamespace,
			Subsystem: config.MetricSubsystem,
			Name:      "last_run_timestamp_seconds",
		}),
	}
}

// Update replaces the gauges with the grouped usage of the given folders
func (ms *Updater) Update(bucket string, folders []du.FolderUsage, runDate time.Time) {
	aggregationResults := ms.aggregator.Aggregate(folders)

	ms.bucket = bucket
	ms.storageUsageGauge.Reset()
	ms.filesGauge.Reset()
	ms.lastRunDateMetric.Set(float64(runDate.UnixNano()) / 1e9)

	if len(aggregationResults) > ms.config.Limit {
		logger.Log.Warn().Msgf("metrics count will be limited to %d (of %d)", ms.config.Limit, len(aggregationResults))
	}
	for i, aggregationResult := range aggregationResults {
		if i >= ms.config.Limit {
			break
		}
		labels := aggregationGroupToLabels(aggregationResult.AggregationGroup)
		// the larger the value, the less significant the digits float64 might lose
		ms.storageUsageGauge.With(labels).Set(float64(aggregationResult.StorageUsage))
		ms.filesGauge.With(labels).Set(float64(aggregationResult.Files))
	}
}

// Push sends the current gauges to the pushgateway.
// The bucket is part of the grouping key, so pushes for different buckets don't replace each other.
func (ms *Updater) Push(ctx context.Context) error {
	if !ms.config.Enabled() {
		return ErrNoPushgateway
	}
	logger.Log.Info().Str("pushgateway", ms.config.PushgatewayURL).Str("job", ms.config.Job).Msg("pushing metrics")
	return push.New(ms.config.PushgatewayURL, ms.config.Job).
		Gatherer(ms.registry).
		Grouping(agg.Bucket, ms.bucket).
		PushContext(ctx)
}

// Gatherer exposes the updater's registry
func (ms *Updater) Gatherer() prometheus.Gatherer {
	return ms.registry
}

func aggregationGroupToLabels(aggregationGroup agg.AggregationGroup) prometheus.Labels {
	labels := make(prometheus.Labels, len(aggregationGroup.Labels))
	for name, value := range aggregationGroup.Labels {
		labels[name] = value
	}
	return labels
}
