package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	viewsRecorded    metric.Int64Counter
	ordersCreated    metric.Int64Counter
	paymentsVerified metric.Int64Counter
}

var (
	current       *instruments
	instrumentsMu sync.Mutex
)

// resetInstruments drops cached instruments so they are recreated against
// the meter provider installed by Init.
func resetInstruments() {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	current = nil
}

func getInstruments() *instruments {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	if current != nil {
		return current
	}

	meter := otel.Meter(serviceName)
	inst := &instruments{}
	// Instrument creation only fails on invalid names; a nil counter
	// is skipped by the record helpers.
	inst.viewsRecorded, _ = meter.Int64Counter("quillfeed.views.recorded",
		metric.WithDescription("Unique post views recorded"))
	inst.ordersCreated, _ = meter.Int64Counter("quillfeed.orders.created",
		metric.WithDescription("Payment orders created with the provider"))
	inst.paymentsVerified, _ = meter.Int64Counter("quillfeed.payments.verified",
		metric.WithDescription("Payment verifications by outcome"))
	current = inst
	return current
}

// RecordView counts a newly recorded unique view.
func RecordView(ctx context.Context) {
	if c := getInstruments().viewsRecorded; c != nil {
		c.Add(ctx, 1)
	}
}

// RecordOrder counts a created payment order.
func RecordOrder(ctx context.Context, currency string) {
	if c := getInstruments().ordersCreated; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", currency)))
	}
}

// RecordVerification counts a payment verification with its resulting status.
func RecordVerification(ctx context.Context, status string) {
	if c := getInstruments().paymentsVerified; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}
