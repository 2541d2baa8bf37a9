package tokenization

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

type fakeElement struct {
	spec       FieldSpec
	mountAfter int32
	polls      atomic.Int32
	mounted    atomic.Bool
	unmounted  atomic.Bool
	value      atomic.Value
	unmountErr error
	panicOnce  bool
}

func (e *fakeElement) Mount(string) error {
	if e.mountAfter == 0 {
		e.mounted.Store(true)
	}
	return nil
}

func (e *fakeElement) IsMounted() bool {
	if e.mounted.Load() {
		return true
	}
	if e.polls.Add(1) >= e.mountAfter {
		e.mounted.Store(true)
	}
	return e.mounted.Load()
}

func (e *fakeElement) SetValue(v string) error {
	if !e.mounted.Load() {
		return errors.New("not mounted yet")
	}
	e.value.Store(v)
	return nil
}

func (e *fakeElement) Unmount() error {
	e.unmounted.Store(true)
	if e.panicOnce {
		panic("detached node")
	}
	return e.unmountErr
}

type fakeContainer struct {
	mu         sync.Mutex
	elements   []*fakeElement
	mountAfter int32
	collectErr error
	createErr  error
}

func (c *fakeContainer) Create(spec FieldSpec) (Element, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el := &fakeElement{spec: spec, mountAfter: c.mountAfter}
	c.elements = append(c.elements, el)
	return el, nil
}

func (c *fakeContainer) Collect(context.Context) (map[FieldType]string, error) {
	if c.collectErr != nil {
		return nil, c.collectErr
	}
	out := map[FieldType]string{}
	for _, el := range c.elements {
		out[el.spec.Type] = "tok_" + string(el.spec.Type)
	}
	return out, nil
}

func (c *fakeContainer) allUnmounted() bool {
	for _, el := range c.elements {
		if !el.unmounted.Load() {
			return false
		}
	}
	return true
}

func (c *fakeContainer) noneUnmounted() bool {
	for _, el := range c.elements {
		if el.unmounted.Load() {
			return false
		}
	}
	return true
}

type fakeVault struct {
	containers []*fakeContainer
	next       func() *fakeContainer
	err        error
}

func (v *fakeVault) NewCollectContainer(context.Context) (Container, error) {
	if v.err != nil {
		return nil, v.err
	}
	c := &fakeContainer{}
	if v.next != nil {
		c = v.next()
	}
	v.containers = append(v.containers, c)
	return c, nil
}

func cardSpecs() []FieldSpec {
	return []FieldSpec{
		{Type: FieldCardNumber, Target: "#number"},
		{Type: FieldCVV, Target: "#cvv"},
	}
}

func newTestManager() (*Manager, *fakeVault) {
	vault := &fakeVault{}
	return NewManager(vault, logger.NewNopLogger(), WithPollInterval(time.Millisecond)), vault
}

func TestContextKey(t *testing.T) {
	key := UpdateContext("card_9")
	assert.Equal(t, ContextKey("update:card_9"), key)

	id, ok := key.CardID()
	assert.True(t, ok)
	assert.Equal(t, "card_9", id)

	assert.True(t, CreateContext.Valid())
	assert.False(t, ContextKey("update:").Valid())
	assert.False(t, ContextKey("other").Valid())
}

func TestParseUnmountPolicy(t *testing.T) {
	assert.Equal(t, UnmountCurrent, ParseUnmountPolicy(""))
	assert.Equal(t, UnmountNone, ParseUnmountPolicy("none"))
	assert.Equal(t, UnmountAll, ParseUnmountPolicy("all"))
	assert.Equal(t, UnmountTarget("update:A"), ParseUnmountPolicy("update:A"))
	assert.Equal(t, "update:A", ParseUnmountPolicy("update:A").String())
}

func TestMount_CurrentPolicyIsolatesContexts(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()

	require.NoError(t, m.Mount(ctx, UpdateContext("A"), cardSpecs(), UnmountCurrent))
	require.NoError(t, m.Mount(ctx, UpdateContext("B"), cardSpecs(), UnmountCurrent))

	require.Len(t, vault.containers, 2)
	assert.True(t, vault.containers[0].noneUnmounted(), "update:A must stay mounted")
	assert.Equal(t, []ContextKey{"update:A", "update:B"}, m.Keys())
}

func TestMount_AllPolicyUnmountsEverything(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()

	require.NoError(t, m.Mount(ctx, UpdateContext("A"), cardSpecs(), UnmountCurrent))
	require.NoError(t, m.Mount(ctx, UpdateContext("B"), cardSpecs(), UnmountCurrent))
	require.NoError(t, m.Mount(ctx, CreateContext, cardSpecs(), UnmountAll))

	assert.True(t, vault.containers[0].allUnmounted())
	assert.True(t, vault.containers[1].allUnmounted())
	assert.Equal(t, []ContextKey{CreateContext}, m.Keys())
}

func TestMount_SameKeyReplacesOldContext(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()

	require.NoError(t, m.Mount(ctx, CreateContext, cardSpecs(), UnmountNone))
	require.NoError(t, m.Mount(ctx, CreateContext, cardSpecs(), UnmountNone))

	assert.True(t, vault.containers[0].allUnmounted())
	assert.True(t, vault.containers[1].noneUnmounted())
	assert.Len(t, m.Keys(), 1)
}

func TestMount_TargetPolicy(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()

	require.NoError(t, m.Mount(ctx, UpdateContext("A"), cardSpecs(), UnmountNone))
	require.NoError(t, m.Mount(ctx, UpdateContext("B"), cardSpecs(), UnmountNone))
	require.NoError(t, m.Mount(ctx, CreateContext, cardSpecs(), UnmountTarget(UpdateContext("A"))))

	assert.True(t, vault.containers[0].allUnmounted())
	assert.True(t, vault.containers[1].noneUnmounted())
	assert.Equal(t, []ContextKey{CreateContext, "update:B"}, m.Keys())
}

func TestMount_PrefillWaitsForMount(t *testing.T) {
	vault := &fakeVault{next: func() *fakeContainer { return &fakeContainer{mountAfter: 3} }}
	m := NewManager(vault, logger.NewNopLogger(), WithPollInterval(time.Millisecond))

	specs := []FieldSpec{{Type: FieldCardholderName, Value: "Ada Lovelace"}}
	require.NoError(t, m.Mount(context.Background(), CreateContext, specs, UnmountCurrent))

	el := vault.containers[0].elements[0]
	assert.Equal(t, "Ada Lovelace", el.value.Load())
	assert.GreaterOrEqual(t, el.polls.Load(), int32(3))
}

func TestMount_PrefillHonoursContext(t *testing.T) {
	vault := &fakeVault{next: func() *fakeContainer { return &fakeContainer{mountAfter: 1 << 30} }}
	m := NewManager(vault, logger.NewNopLogger(), WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Mount(ctx, CreateContext, []FieldSpec{{Type: FieldCVV, Value: "x"}}, UnmountCurrent)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMountFailed, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, m.Keys())
	assert.True(t, vault.containers[0].allUnmounted())
}

func TestMount_Errors(t *testing.T) {
	ctx := context.Background()

	m, _ := newTestManager()
	assert.Equal(t, apperrors.CodeMountFailed, apperrors.CodeOf(m.Mount(ctx, "bogus", cardSpecs(), UnmountCurrent)))
	assert.Equal(t, apperrors.CodeMountFailed, apperrors.CodeOf(m.Mount(ctx, CreateContext, nil, UnmountCurrent)))
	assert.Equal(t, apperrors.CodeInvalidRequest,
		apperrors.CodeOf(m.Mount(ctx, CreateContext, []FieldSpec{{Type: "iban"}}, UnmountCurrent)))

	failing := NewManager(&fakeVault{err: errors.New("vault script missing")}, logger.NewNopLogger())
	assert.Equal(t, apperrors.CodeMountFailed, apperrors.CodeOf(failing.Mount(ctx, CreateContext, cardSpecs(), UnmountCurrent)))

	noVault := NewManager(nil, logger.NewNopLogger())
	assert.Equal(t, apperrors.CodeMountFailed, apperrors.CodeOf(noVault.Mount(ctx, CreateContext, cardSpecs(), UnmountCurrent)))
}

func TestUnmount_DefensivePerElement(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()
	require.NoError(t, m.Mount(ctx, CreateContext, []FieldSpec{
		{Type: FieldCardNumber}, {Type: FieldCVV}, {Type: FieldExpirationMonth},
	}, UnmountCurrent))

	els := vault.containers[0].elements
	els[0].unmountErr = errors.New("already detached")
	els[1].panicOnce = true

	assert.Equal(t, 1, m.Unmount(CreateContext))
	assert.True(t, vault.containers[0].allUnmounted())
	assert.Empty(t, m.Keys())
	assert.Equal(t, 0, m.Unmount(CreateContext))
}

func TestUnmount_All(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	require.NoError(t, m.Mount(ctx, CreateContext, cardSpecs(), UnmountNone))
	require.NoError(t, m.Mount(ctx, UpdateContext("A"), cardSpecs(), UnmountNone))

	assert.Equal(t, 2, m.Unmount(AllContexts))
	assert.Empty(t, m.Keys())
}

func TestGetContainerAndCollect(t *testing.T) {
	ctx := context.Background()
	m, vault := newTestManager()

	_, ok := m.GetContainer("A")
	assert.False(t, ok)

	_, err := m.Collect(ctx, UpdateContext("A"))
	assert.Equal(t, apperrors.CodeContextNotMounted, apperrors.CodeOf(err))

	require.NoError(t, m.Mount(ctx, UpdateContext("A"), []FieldSpec{{Type: FieldCVV}}, UnmountCurrent))
	container, ok := m.GetContainer("A")
	require.True(t, ok)
	assert.Same(t, vault.containers[0], container)
	assert.True(t, m.IsMounted(UpdateContext("A")))

	card, err := m.Collect(ctx, UpdateContext("A"))
	require.NoError(t, err)
	assert.Equal(t, "tok_cvv", card.CVC)
	assert.Empty(t, card.CardNumber)

	vault.containers[0].collectErr = errors.New("vault rejected")
	_, err = m.Collect(ctx, UpdateContext("A"))
	assert.Equal(t, apperrors.CodeCollectFailed, apperrors.CodeOf(err))
}
