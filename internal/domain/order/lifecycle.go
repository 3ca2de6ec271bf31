package order

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Status is a stage of an order's fulfillment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrInvalidTransition is wrapped by InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned by ParseStatus for unrecognized input.
	ErrUnknownStatus = errors.New("unknown order status")
)

// InvalidTransitionError reports a rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDelivered, StatusCancelled},
}

// Spanish names used by existing clients.
var statusAliases = map[string]Status{
	"pendiente":  StatusPending,
	"confirmado": StatusConfirmed,
	"preparando": StatusPreparing,
	"listo":      StatusReady,
	"entregado":  StatusDelivered,
	"cancelado":  StatusCancelled,
}

// ParseStatus accepts a canonical status name or its Spanish alias, in any case.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	st := Status(key)
	if st == StatusDelivered || st == StatusCancelled {
		return st, nil
	}
	if _, ok := transitions[st]; ok {
		return st, nil
	}
	return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
}

// StoredNames lists the spellings a stored row may use for s: the canonical
// name first, then its Spanish alias.
func (s Status) StoredNames() []string {
	names := []string{string(s)}
	for alias, st := range statusAliases {
		if st == s {
			names = append(names, alias)
		}
	}
	return names
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition returns to if moving from from to to is allowed.
func Transition(from, to Status) (Status, error) {
	if !slices.Contains(transitions[from], to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}
