package tokenization

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/orris-inc/checkout/internal/domain/payment"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/utils"
)

// DefaultPollInterval is how often a field is checked for mount completion.
const DefaultPollInterval = 50 * time.Millisecond

type mountedField struct {
	spec    FieldSpec
	element Element
}

type mountedContext struct {
	container Container
	fields    []mountedField
}

// Manager holds at most one live context per key.
type Manager struct {
	vault        Vault
	logger       logger.Interface
	pollInterval time.Duration

	mu       sync.Mutex
	contexts map[ContextKey]*mountedContext
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPollInterval overrides the mount polling interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

func NewManager(vault Vault, log logger.Interface, opts ...ManagerOption) *Manager {
	m := &Manager{
		vault:        vault,
		logger:       log.Named("tokenization"),
		pollInterval: DefaultPollInterval,
		contexts:     make(map[ContextKey]*mountedContext),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetVault swaps the vault used by later mounts. Live contexts keep theirs.
func (m *Manager) SetVault(vault Vault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vault = vault
}

// Mount creates and mounts specs under key after applying policy. Any live
// context already registered for key is unmounted first. Prefilled values are
// written only after the vault reports the field mounted; the wait is bounded
// by ctx alone.
func (m *Manager) Mount(ctx context.Context, key ContextKey, specs []FieldSpec, policy UnmountPolicy) error {
	if !key.Valid() {
		return apperrors.New(apperrors.CodeMountFailed,
			apperrors.WithStatus(400),
			apperrors.WithDetails(map[string]any{"context": key.String()}))
	}
	if len(specs) == 0 {
		return apperrors.New(apperrors.CodeMountFailed,
			apperrors.WithStatus(400),
			apperrors.WithDetails(map[string]any{"context": key.String(), "reason": "no fields"}))
	}
	for i := range specs {
		if err := utils.ValidateStruct(&specs[i]); err != nil {
			return err
		}
	}

	m.mu.Lock()
	vault := m.vault
	stale := m.detachForMount(key, policy)
	m.mu.Unlock()

	for staleKey, mc := range stale {
		m.teardown(staleKey, mc)
	}

	if vault == nil {
		return apperrors.New(apperrors.CodeMountFailed,
			apperrors.WithMessage("tokenization vault is not configured"),
			apperrors.WithDetails(map[string]any{"context": key.String()}))
	}

	mc, err := m.build(ctx, vault, key, specs)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeMountFailed,
			apperrors.WithDetails(map[string]any{"context": key.String()}))
	}

	m.mu.Lock()
	previous := m.contexts[key]
	m.contexts[key] = mc
	m.mu.Unlock()

	// a concurrent mount for the same key lost the race
	if previous != nil {
		m.teardown(key, previous)
	}

	m.logger.Debugw("tokenization context mounted",
		"context", key.String(),
		"fields", len(mc.fields),
		"policy", policy.String())
	return nil
}

// detachForMount removes the contexts the policy and key replace. Callers
// hold m.mu.
func (m *Manager) detachForMount(key ContextKey, policy UnmountPolicy) map[ContextKey]*mountedContext {
	stale := make(map[ContextKey]*mountedContext)
	take := func(k ContextKey) {
		if mc, ok := m.contexts[k]; ok {
			stale[k] = mc
			delete(m.contexts, k)
		}
	}

	switch policy.kind {
	case policyAll:
		for k := range m.contexts {
			take(k)
		}
	case policyTarget:
		if policy.target == AllContexts {
			for k := range m.contexts {
				take(k)
			}
		} else {
			take(policy.target)
		}
	}
	take(key)
	return stale
}

func (m *Manager) build(ctx context.Context, vault Vault, key ContextKey, specs []FieldSpec) (*mountedContext, error) {
	container, err := vault.NewCollectContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create collect container: %w", err)
	}

	mc := &mountedContext{container: container}
	for _, spec := range specs {
		element, err := container.Create(spec)
		if err != nil {
			m.teardown(key, mc)
			return nil, fmt.Errorf("create %s field: %w", spec.Type, err)
		}
		if err := element.Mount(spec.Target); err != nil {
			m.teardown(key, mc)
			return nil, fmt.Errorf("mount %s field: %w", spec.Type, err)
		}
		mc.fields = append(mc.fields, mountedField{spec: spec, element: element})
	}

	for _, field := range mc.fields {
		if field.spec.Value == "" {
			continue
		}
		if err := m.waitMounted(ctx, field.element); err != nil {
			m.teardown(key, mc)
			return nil, fmt.Errorf("wait for %s field: %w", field.spec.Type, err)
		}
		if err := field.element.SetValue(field.spec.Value); err != nil {
			m.teardown(key, mc)
			return nil, fmt.Errorf("prefill %s field: %w", field.spec.Type, err)
		}
	}

	return mc, nil
}

func (m *Manager) waitMounted(ctx context.Context, element Element) error {
	if element.IsMounted() {
		return nil
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if element.IsMounted() {
				return nil
			}
		}
	}
}

// Unmount tears down key, or every context for AllContexts, and returns the
// number of contexts removed. Element failures are logged and never stop
// the rest of the cleanup.
func (m *Manager) Unmount(key ContextKey) int {
	m.mu.Lock()
	stale := make(map[ContextKey]*mountedContext)
	if key == AllContexts {
		for k, mc := range m.contexts {
			stale[k] = mc
		}
		clear(m.contexts)
	} else if mc, ok := m.contexts[key]; ok {
		stale[key] = mc
		delete(m.contexts, key)
	}
	m.mu.Unlock()

	for k, mc := range stale {
		m.teardown(k, mc)
	}
	return len(stale)
}

func (m *Manager) teardown(key ContextKey, mc *mountedContext) {
	for _, field := range mc.fields {
		m.unmountElement(key, field)
	}
}

func (m *Manager) unmountElement(key ContextKey, field mountedField) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorw("field unmount panicked",
				"context", key.String(),
				"field", string(field.spec.Type),
				"panic", fmt.Sprintf("%v", r))
		}
	}()

	if err := field.element.Unmount(); err != nil {
		m.logger.Warnw("field unmount failed",
			"context", key.String(),
			"field", string(field.spec.Type),
			"error", err)
	}
}

// GetContainer returns the collect container of "update:<cardID>".
func (m *Manager) GetContainer(cardID string) (Container, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.contexts[UpdateContext(cardID)]
	if !ok {
		return nil, false
	}
	return mc.container, true
}

// Collect tokenizes the fields of key.
func (m *Manager) Collect(ctx context.Context, key ContextKey) (payment.TokenizedCard, error) {
	m.mu.Lock()
	mc, ok := m.contexts[key]
	m.mu.Unlock()

	if !ok {
		return payment.TokenizedCard{}, apperrors.New(apperrors.CodeContextNotMounted,
			apperrors.WithStatus(400),
			apperrors.WithDetails(map[string]any{"context": key.String()}))
	}

	tokens, err := mc.container.Collect(ctx)
	if err != nil {
		return payment.TokenizedCard{}, apperrors.Wrap(err, apperrors.CodeCollectFailed,
			apperrors.WithDetails(map[string]any{"context": key.String()}))
	}
	return ToTokenizedCard(tokens), nil
}

// IsMounted reports whether key has a live context.
func (m *Manager) IsMounted(key ContextKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contexts[key]
	return ok
}

// Keys returns the live context keys in sorted order.
func (m *Manager) Keys() []ContextKey {
	m.mu.Lock()
	keys := make([]ContextKey, 0, len(m.contexts))
	for k := range m.contexts {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	slices.Sort(keys)
	return keys
}
