package tagpool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series a Pool reports.
type Metrics struct {
	SlotsReserved *prometheus.GaugeVec
	SlotsInUse    *prometheus.GaugeVec
	SlotsBorrowed *prometheus.GaugeVec
	Pending       prometheus.Gauge

	AdmissionsTotal          *prometheus.CounterVec
	AdmissionRejectionsTotal *prometheus.CounterVec
	ResultsDeliveredTotal    *prometheus.CounterVec
	ResultsFailedTotal       *prometheus.CounterVec

	mu           sync.Mutex
	observedTags map[Tag]struct{}
}

// NewMetrics registers tagpool's metric series against registerer. Pass
// prometheus.DefaultRegisterer for the global registry, or a scoped
// registerer (e.g. built with prometheus.WrapRegistererWith) to attach
// a service label.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		SlotsReserved: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tagpool_slots_reserved",
				Help: "Reserved slot count per tag.",
			},
			[]string{"tag"},
		),
		SlotsInUse: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tagpool_slots_in_use",
				Help: "In-use slot count per tag.",
			},
			[]string{"tag"},
		),
		SlotsBorrowed: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tagpool_slots_borrowed",
				Help: "Slots currently borrowed from the generic reserve, per tag.",
			},
			[]string{"tag"},
		),
		Pending: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "tagpool_pending",
				Help: "Tasks admitted but not yet routed.",
			},
		),
		AdmissionsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagpool_admissions_total",
				Help: "Total admitted tasks.",
			},
			[]string{"tag", "borrowed"},
		),
		AdmissionRejectionsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagpool_admission_rejections_total",
				Help: "Total non-blocking admission attempts that found no free slot.",
			},
			[]string{"tag"},
		),
		ResultsDeliveredTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagpool_results_delivered_total",
				Help: "Total routed results, by route taken.",
			},
			[]string{"route"},
		),
		ResultsFailedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagpool_results_failed_total",
				Help: "Total routed results that carried a task error, by tag.",
			},
			[]string{"tag"},
		),
		observedTags: make(map[Tag]struct{}),
	}
}

// observeTag remembers tag so snapshotSlots can zero its series even
// when a tag currently has no activity (a gauge that is never Set for
// an idle tag would otherwise vanish from scrapes entirely).
func (m *Metrics) observeTag(tag Tag) {
	m.mu.Lock()
	m.observedTags[tag] = struct{}{}
	m.mu.Unlock()
}

// snapshotSlots pushes a full ledger snapshot into the slot gauges.
func (m *Metrics) snapshotSlots(snap map[Tag]SlotCounts) {
	for tag, counts := range snap {
		m.observeTag(tag)
		label := tag.String()
		m.SlotsReserved.WithLabelValues(label).Set(float64(counts.Reserved))
		m.SlotsInUse.WithLabelValues(label).Set(float64(counts.InUse))
		m.SlotsBorrowed.WithLabelValues(label).Set(float64(counts.Borrowed))
	}
}

func (m *Metrics) recordAdmission(tag Tag, borrowed bool) {
	borrowedLabel := "false"
	if borrowed {
		borrowedLabel = "true"
	}
	m.AdmissionsTotal.WithLabelValues(tag.String(), borrowedLabel).Inc()
}

func (m *Metrics) recordRejection(tag Tag) {
	m.AdmissionRejectionsTotal.WithLabelValues(tag.String()).Inc()
}

func (m *Metrics) recordRoute(route string) {
	m.ResultsDeliveredTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) recordFailure(tag Tag) {
	m.ResultsFailedTotal.WithLabelValues(tag.String()).Inc()
}

func (m *Metrics) setPending(n int) {
	m.Pending.Set(float64(n))
}
