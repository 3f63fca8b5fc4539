package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seedbot"

// Outcome labels for EventsTotal.
const (
	OutcomeNoPhoto = "no_photo"
	OutcomeReplied = "replied"
	OutcomeFailed  = "failed"
	OutcomeIgnored = "ignored"
)

// Pipeline holds the collectors recorded by the webhook pipeline.
type Pipeline struct {
	EventsTotal      *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	PredictionsTotal *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

// NewPipeline creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events handled, by final outcome.",
		}, []string{"outcome"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_errors_total",
			Help:      "Pipeline failures, by error kind.",
		}, []string{"kind"}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful classifications, by label.",
		}, []string{"label"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.EventsTotal, m.ErrorsTotal, m.PredictionsTotal, m.StageDuration)
	}
	return m
}

// ObserveStage records the time since start for stage.
func (m *Pipeline) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Pipeline) Event(outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(outcome).Inc()
}

func (m *Pipeline) Error(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Pipeline) Prediction(label string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(label).Inc()
}
