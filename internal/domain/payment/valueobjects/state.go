package valueobjects

// State is a node of the per-attempt checkout state machine.
type State string

const (
	StateInit             State = "INIT"
	StateCustomerResolved State = "CUSTOMER_RESOLVED"
	StateOrderCreated     State = "ORDER_CREATED"
	StatePaymentCreated   State = "PAYMENT_CREATED"
	StateRouted           State = "ROUTED"
	StateRedirecting      State = "REDIRECTING"
	StateChallenging      State = "CHALLENGING"
	StateResuming         State = "RESUMING"
	StateSettled          State = "SETTLED"
)

// IsTerminal reports whether no further transition happens within this call.
// CHALLENGING is terminal for the caller even though a detached verify may follow.
func (s State) IsTerminal() bool {
	switch s {
	case StateRedirecting, StateChallenging, StateSettled:
		return true
	default:
		return false
	}
}

// IsPaused reports whether the customer must act before the attempt can settle.
func (s State) IsPaused() bool {
	return s == StateRedirecting || s == StateChallenging
}

func (s State) String() string {
	return string(s)
}
