package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled, by who initiated it.",
		},
		[]string{"by"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "booking_rejected_total",
			Help:      "Count of booking attempts rejected, by reason.",
		},
		[]string{"reason"},
	)

	remindersPlanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "reminders_planned_total",
			Help:      "Count of reminder jobs scheduled.",
		},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "reminders_sent_total",
			Help:      "Count of reminder notifications delivered.",
		},
	)

	remindersRestored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "reminders_restored_total",
			Help:      "Count of reminder jobs rebuilt after restart.",
		},
	)

	remindersSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nailsbot",
			Name:      "reminders_skipped_total",
			Help:      "Count of reminders whose fire time elapsed while the process was down.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCancelled, bookingRejected,
			remindersPlanned, remindersSent, remindersRestored, remindersSkipped,
		)
	})
}

func IncBookingCreated()            { bookingCreated.Inc() }
func IncBookingCancelled(by string) { bookingCancelled.WithLabelValues(by).Inc() }
func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}
func IncReminderPlanned()          { remindersPlanned.Inc() }
func IncReminderSent()             { remindersSent.Inc() }
func IncReminderSkipped()          { remindersSkipped.Inc() }
func AddRemindersRestored(n int)   { remindersRestored.Add(float64(n)) }
