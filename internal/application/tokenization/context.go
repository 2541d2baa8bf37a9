// Package tokenization tracks which mounted vault fields belong to which
// logical card operation and tears them down safely.
package tokenization

import (
	"context"
	"strings"

	"github.com/orris-inc/checkout/internal/domain/payment"
)

// ContextKey names a tokenization context: "create" for a new card or
// "update:<cardId>" for re-collecting fields of a saved card.
type ContextKey string

const (
	CreateContext ContextKey = "create"
	// AllContexts addresses every live context in Unmount.
	AllContexts ContextKey = "all"

	updatePrefix = "update:"
)

// UpdateContext returns the key for editing or re-collecting cardID.
func UpdateContext(cardID string) ContextKey {
	return ContextKey(updatePrefix + cardID)
}

// CardID returns the card of an update context.
func (k ContextKey) CardID() (string, bool) {
	id, ok := strings.CutPrefix(string(k), updatePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (k ContextKey) Valid() bool {
	if k == CreateContext {
		return true
	}
	_, ok := k.CardID()
	return ok
}

func (k ContextKey) String() string {
	return string(k)
}

type policyKind int

const (
	policyNone policyKind = iota
	policyCurrent
	policyAll
	policyTarget
)

// UnmountPolicy decides which other contexts are torn down before a mount.
// The context being mounted is always replaced.
type UnmountPolicy struct {
	kind   policyKind
	target ContextKey
}

var (
	UnmountNone    = UnmountPolicy{kind: policyNone}
	UnmountCurrent = UnmountPolicy{kind: policyCurrent}
	UnmountAll     = UnmountPolicy{kind: policyAll}
)

// UnmountTarget tears down one named context before mounting.
func UnmountTarget(key ContextKey) UnmountPolicy {
	return UnmountPolicy{kind: policyTarget, target: key}
}

// ParseUnmountPolicy accepts "none", "current", "all" or a context key.
// An empty string means "current".
func ParseUnmountPolicy(s string) UnmountPolicy {
	switch s {
	case "", "current":
		return UnmountCurrent
	case "none":
		return UnmountNone
	case "all":
		return UnmountAll
	default:
		return UnmountTarget(ContextKey(s))
	}
}

func (p UnmountPolicy) String() string {
	switch p.kind {
	case policyNone:
		return "none"
	case policyAll:
		return "all"
	case policyTarget:
		return p.target.String()
	default:
		return "current"
	}
}

// FieldType identifies which card field an element collects.
type FieldType string

const (
	FieldCardholderName  FieldType = "card_holder_name"
	FieldCardNumber      FieldType = "card_number"
	FieldExpirationMonth FieldType = "expiration_month"
	FieldExpirationYear  FieldType = "expiration_year"
	FieldCVV             FieldType = "cvv"
)

// FieldSpec describes one input to create in a collect container.
type FieldSpec struct {
	Type        FieldType `json:"type" validate:"required,oneof=card_holder_name card_number expiration_month expiration_year cvv"`
	Target      string    `json:"target,omitempty"`
	Label       string    `json:"label,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required,omitempty"`
	// Value is written into the field once the vault reports it mounted.
	Value string `json:"value,omitempty"`
}

// Element is one mounted vault field.
type Element interface {
	Mount(target string) error
	IsMounted() bool
	SetValue(value string) error
	Unmount() error
}

// Container groups the elements whose values are collected together.
type Container interface {
	Create(spec FieldSpec) (Element, error)
	// Collect tokenizes every element and returns vault references keyed by field type.
	Collect(ctx context.Context) (map[FieldType]string, error)
}

// Vault creates collect containers. The production binding talks to the
// merchant's tokenization vault.
type Vault interface {
	NewCollectContainer(ctx context.Context) (Container, error)
}

// ToTokenizedCard maps collected references onto the card fields.
func ToTokenizedCard(tokens map[FieldType]string) payment.TokenizedCard {
	return payment.TokenizedCard{
		CardholderName:  tokens[FieldCardholderName],
		CardNumber:      tokens[FieldCardNumber],
		ExpirationMonth: tokens[FieldExpirationMonth],
		ExpirationYear:  tokens[FieldExpirationYear],
		CVC:             tokens[FieldCVV],
	}
}
