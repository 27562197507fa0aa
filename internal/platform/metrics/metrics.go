package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level Prometheus metrics. Scope-level metrics
// (revisions emitted, captures, open depth) live in pkg/revision/metrics.
type Metrics struct {
	NotesSaved   prometheus.Counter
	NotesDeleted prometheus.Counter
}

// New creates and registers the service metrics.
func New() *Metrics {
	return &Metrics{
		NotesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_notes_saved_total",
			Help: "Total number of note saves recorded",
		}),
		NotesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_notes_deleted_total",
			Help: "Total number of note deletions recorded",
		}),
	}
}

// IncrementNotesSaved increments the saved counter by 1.
func (m *Metrics) IncrementNotesSaved() {
	m.NotesSaved.Inc()
}

// IncrementNotesDeleted increments the deleted counter by 1.
func (m *Metrics) IncrementNotesDeleted() {
	m.NotesDeleted.Inc()
}
