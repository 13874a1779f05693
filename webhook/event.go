package webhook

// EventKind is the closed set of provider events the processor understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCheckoutSessionCompleted
	EventPaymentIntentFailed
	EventPaymentIntentSucceeded
	EventChargeRefunded
)

var kindNames = map[EventKind]string{
	EventCheckoutSessionCompleted: "checkout.session.completed",
	EventPaymentIntentFailed:      "payment_intent.payment_failed",
	EventPaymentIntentSucceeded:   "payment_intent.succeeded",
	EventChargeRefunded:           "charge.refunded",
}

var kindByName = func() map[string]EventKind {
	m := make(map[string]EventKind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// KindOf maps a provider event type to its kind; unrecognised types are EventUnknown.
func KindOf(eventType string) EventKind {
	return kindByName[eventType]
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}
