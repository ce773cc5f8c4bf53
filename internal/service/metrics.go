package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// acceptOutcomes counts how accept attempts end. The "conflict" outcome is
// the conditional write losing a race; watching its ratio against "success"
// shows how contended the marketplace is.
var acceptOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "timecraft_offer_accepts_total",
		Help: "Offer accept attempts by outcome.",
	},
	[]string{"outcome"},
)
