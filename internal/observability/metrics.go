package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	groupsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moq_relay",
		Name:      "groups_received_total",
		Help:      "Groups received per track.",
	}, []string{"track"})

	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moq_relay",
		Name:      "cache_hits_total",
		Help:      "Group cache hits per track.",
	}, []string{"track"})

	cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moq_relay",
		Name:      "cache_misses_total",
		Help:      "Group cache misses per track.",
	}, []string{"track"})

	catchupGroups = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moq_relay",
		Name:      "catchup_groups",
		Help:      "Number of buffered groups delivered to a newly joined subscriber.",
		Buckets:   prometheus.LinearBuckets(0, 2, 10),
	}, []string{"track"})

	subscriberGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "moq_relay",
		Name:      "subscribers",
		Help:      "Current subscriber count per track.",
	}, []string{"track"})

	broadcastLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moq_relay",
		Name:      "broadcast_latency_seconds",
		Help:      "Time to fan an object out to every subscriber.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"track"})

	broadcastFanout = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moq_relay",
		Name:      "broadcast_fanout_ratio",
		Help:      "Subscribers successfully delivered to versus attempted, per broadcast.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"track"})

	namedLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moq_relay",
		Name:      "stage_latency_seconds",
		Help:      "Latency of a named processing stage, per track.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"track", "stage"})

	activeTracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moq_relay",
		Name:      "active_tracks",
		Help:      "Tracks currently registered across every namespace this relay serves.",
	})
)

func init() {
	prometheus.MustRegister(
		groupsReceived, cacheHits, cacheMisses, catchupGroups,
		subscriberGauge, broadcastLatency, broadcastFanout, namedLatency,
		activeTracks,
	)
}

// IncTracks and DecTracks track the process-wide count of registered
// tracks, independent of any single Recorder.
func IncTracks() {
	if !MetricsEnabled() {
		return
	}
	activeTracks.Inc()
}

func DecTracks() {
	if !MetricsEnabled() {
		return
	}
	activeTracks.Dec()
}

// Recorder records per-track metrics. Every method is safe to call
// whether or not metrics are enabled; when disabled they're cheap
// no-ops except LatencyObs, which returns nil so callers can skip
// sampling work entirely.
type Recorder struct {
	track string
}

// NewRecorder returns a Recorder scoped to track.
func NewRecorder(track string) *Recorder {
	return &Recorder{track: track}
}

func (r *Recorder) GroupReceived() {
	if !MetricsEnabled() {
		return
	}
	groupsReceived.WithLabelValues(r.track).Inc()
}

func (r *Recorder) CacheHit() {
	if !MetricsEnabled() {
		return
	}
	cacheHits.WithLabelValues(r.track).Inc()
}

func (r *Recorder) CacheMiss() {
	if !MetricsEnabled() {
		return
	}
	cacheMisses.WithLabelValues(r.track).Inc()
}

// Catchup records how many buffered groups were replayed to a newly
// joined subscriber.
func (r *Recorder) Catchup(groups int) {
	if !MetricsEnabled() {
		return
	}
	catchupGroups.WithLabelValues(r.track).Observe(float64(groups))
}

func (r *Recorder) IncSubscribers() {
	if !MetricsEnabled() {
		return
	}
	subscriberGauge.WithLabelValues(r.track).Inc()
}

func (r *Recorder) DecSubscribers() {
	if !MetricsEnabled() {
		return
	}
	subscriberGauge.WithLabelValues(r.track).Dec()
}

func (r *Recorder) SetSubscribers(n int) {
	if !MetricsEnabled() {
		return
	}
	subscriberGauge.WithLabelValues(r.track).Set(float64(n))
}

// Broadcast records one fan-out's latency and delivered/attempted
// subscriber counts.
func (r *Recorder) Broadcast(d time.Duration, delivered, attempted int) {
	if !MetricsEnabled() {
		return
	}
	broadcastLatency.WithLabelValues(r.track).Observe(d.Seconds())
	if attempted > 0 {
		broadcastFanout.WithLabelValues(r.track).Observe(float64(delivered) / float64(attempted))
	}
}

// Observer records a single latency sample against a named stage.
type Observer struct {
	observer prometheus.Observer
}

// Observe records v (seconds) against the stage this Observer was
// created for.
func (o *Observer) Observe(v float64) { o.observer.Observe(v) }

// LatencyObs returns an Observer for the named processing stage, or nil
// if metrics are disabled.
func (r *Recorder) LatencyObs(stage string) *Observer {
	if !MetricsEnabled() {
		return nil
	}
	return &Observer{observer: namedLatency.WithLabelValues(r.track, stage)}
}
