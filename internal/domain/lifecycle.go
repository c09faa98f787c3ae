package domain

// Event is a lifecycle occurrence that may move an order to another status.
type Event string

const (
	EventOrderCreated         Event = "order_created"
	EventPaymentIntentCreated Event = "payment_intent_created"
	EventPaymentSucceeded     Event = "payment_succeeded"
	EventPaymentFailed        Event = "payment_failed"
	EventRefunded             Event = "refunded"
	EventAdminMarkPreparing   Event = "admin_mark_preparing"
	EventAdminMarkReady       Event = "admin_mark_ready"
	EventDeliveryPickedUp     Event = "delivery_picked_up"
	EventDeliveryDelivered    Event = "delivery_delivered"
	EventDeliveryFailed       Event = "delivery_failed"
	EventAdminCancel          Event = "admin_cancel"
)

// anyNonTerminal marks events accepted from every non-terminal status.
const anyNonTerminal Status = "*"

type transitionRule struct {
	from []Status
	to   Status
	// keep leaves the status unchanged when accepted.
	keep bool
}

var transitions = map[Event]transitionRule{
	EventPaymentIntentCreated: {from: []Status{StatusDraft, StatusPendingPayment}, to: StatusPendingPayment},
	EventPaymentSucceeded:     {from: []Status{StatusDraft, StatusPendingPayment}, to: StatusConfirmed},
	EventPaymentFailed:        {from: []Status{StatusPendingPayment}, keep: true},
	EventRefunded:             {from: []Status{anyNonTerminal}, to: StatusCancelled},
	EventAdminMarkPreparing:   {from: []Status{StatusConfirmed}, to: StatusPreparing},
	EventAdminMarkReady:       {from: []Status{StatusPreparing}, to: StatusReadyForDelivery},
	EventDeliveryPickedUp:     {from: []Status{StatusReadyForDelivery, StatusPreparing}, to: StatusOutForDelivery},
	EventDeliveryDelivered:    {from: []Status{StatusOutForDelivery}, to: StatusDelivered},
	EventDeliveryFailed:       {from: []Status{StatusOutForDelivery}, keep: true},
	EventAdminCancel:          {from: []Status{anyNonTerminal}, to: StatusCancelled},
}

// Transition decides the status that follows current when event occurs.
// Combinations not in the table are rejected with IllegalTransition.
func Transition(current Status, event Event) (Status, error) {
	rule, ok := transitions[event]
	if !ok {
		return current, newError(KindIllegalTransition, "event", "unknown event %q", event)
	}
	if !current.Valid() {
		return current, newError(KindIllegalTransition, "status", "unknown status %q", current)
	}
	if current.IsTerminal() {
		return current, newError(KindIllegalTransition, "status", "order is %s, no further changes allowed", current)
	}

	for _, from := range rule.from {
		if from == current || from == anyNonTerminal {
			if rule.keep {
				return current, nil
			}
			return rule.to, nil
		}
	}
	return current, newError(KindIllegalTransition, "status", "%s is not allowed while order is %s", event, current)
}

// Known reports whether the event is part of the lifecycle.
func (e Event) Known() bool {
	_, ok := transitions[e]
	return ok
}

// Alerting events are accepted but need someone to look at the order.
func (e Event) Alerting() bool {
	return e == EventDeliveryFailed || e == EventPaymentFailed
}
