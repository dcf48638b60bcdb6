package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courier"

var (
	invocationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "invocations_total"),
		"Publish step invocations by message kind and terminal status.",
		[]string{"step", "kind", "status"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "failures_total"),
		"Failed or canceled publish invocations by cause.",
		[]string{"step", "cause"}, nil,
	)
	bytesSentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "bytes_sent_total"),
		"Payload bytes written by successful publishes.",
		[]string{"step"}, nil,
	)
	durationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "duration_seconds"),
		"Wall time of publish invocations.",
		[]string{"step"}, nil,
	)
)

var _ prometheus.Collector = (*Collector)(nil)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- invocationsDesc
	ch <- failuresDesc
	ch <- bytesSentDesc
	ch <- durationDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()

	for k, v := range s.ByKind {
		ch <- prometheus.MustNewConstMetric(invocationsDesc, prometheus.CounterValue, float64(v), s.Step, k.Kind, string(k.Status))
	}

	causes := []struct {
		name  string
		value int64
	}{
		{"connect_timeout", s.ConnectTimeouts},
		{"connect_fault", s.ConnectFaults},
		{"send_timeout", s.SendTimeouts},
		{"send_error", s.SendErrors},
		{"unexpected", s.UnexpectedErrors},
		{"canceled", s.Canceled},
	}
	for _, cause := range causes {
		ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(cause.value), s.Step, cause.name)
	}

	ch <- prometheus.MustNewConstMetric(bytesSentDesc, prometheus.CounterValue, float64(s.BytesSent), s.Step)

	buckets := make(map[float64]uint64, len(DurationBuckets))
	var cumulative uint64
	for i, bound := range DurationBuckets {
		if i < len(s.DurationBucketCounts) {
			cumulative += uint64(s.DurationBucketCounts[i])
		}
		buckets[bound] = cumulative
	}
	ch <- prometheus.MustNewConstHistogram(durationDesc, uint64(s.DurationCount), s.DurationSumSeconds, buckets, s.Step)
}

// Registry returns a registry holding only c.
func (c *Collector) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, fmt.Errorf("register metrics collector: %w", err)
	}
	return reg, nil
}

// WriteTextfile writes the metrics in text exposition format to path,
// atomically, for collection by a node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	reg, err := c.Registry()
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
