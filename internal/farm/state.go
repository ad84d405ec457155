// Package farm drives the two-account trade cycle: one account sends an item
// tagged with the shared security code, the other accepts it and sends one
// back, forever.
package farm

import "steam-trade-farm/internal/platform"

// State is an account's position in the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateReady
	StateCycling
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateCycling:
		return "cycling"
	}
	return "unknown"
}

// Role decides who sends the first offer.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// EffectKind is an action the orchestrator performs after a transition.
type EffectKind int

const (
	EffectLog EffectKind = iota
	EffectWarn
	EffectApplyCookies
	EffectSendInitial
	EffectHandleOffer
)

func (k EffectKind) String() string {
	switch k {
	case EffectLog:
		return "log"
	case EffectWarn:
		return "warn"
	case EffectApplyCookies:
		return "apply_cookies"
	case EffectSendInitial:
		return "send_initial"
	case EffectHandleOffer:
		return "handle_offer"
	}
	return "unknown"
}

// Effect is one action with an optional log message.
type Effect struct {
	Kind    EffectKind
	Message string
}

// Transition computes the next state and the effects of ev arriving while
// an account with role is in state s. It has no side effects.
//
// Only the first web session moves an account to Ready; later ones refresh
// cookies. A disconnect is logged and the account keeps its state; there is
// no reconnect.
func Transition(s State, role Role, ev platform.EventKind) (State, []Effect) {
	switch ev {
	case platform.EventLoggedOn:
		return s, []Effect{{Kind: EffectLog, Message: "successfully logged in"}}

	case platform.EventError:
		if s == StateAuthenticating {
			return StateDisconnected, []Effect{{Kind: EffectWarn, Message: "log on failed"}}
		}
		return s, []Effect{{Kind: EffectWarn, Message: "connection error"}}

	case platform.EventDisconnected:
		return s, []Effect{{Kind: EffectWarn, Message: "disconnected"}}

	case platform.EventWebSession:
		switch s {
		case StateAuthenticating:
			effects := []Effect{{Kind: EffectApplyCookies}}
			if role == RoleInitiator {
				effects = append(effects, Effect{Kind: EffectSendInitial})
			}
			return StateReady, effects
		case StateReady, StateCycling:
			return s, []Effect{{Kind: EffectApplyCookies, Message: "web session refreshed"}}
		}
		return s, []Effect{{Kind: EffectWarn, Message: "web session without log on, ignoring"}}

	case platform.EventNewOffer:
		if s == StateReady || s == StateCycling {
			return StateCycling, []Effect{{Kind: EffectHandleOffer}}
		}
		return s, []Effect{{Kind: EffectWarn, Message: "offer received before session was ready, ignoring"}}
	}

	return s, []Effect{{Kind: EffectWarn, Message: "unknown event " + ev.String()}}
}
