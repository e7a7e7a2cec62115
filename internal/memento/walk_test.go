package memento_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/serial"
	"github.com/roach88/keepsake/internal/testutil"
)

func TestCaptureRestoreOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	bob := &testutil.Customer{ID: "bob", Name: "Bob"}
	_, err := e.memory.Put(ctx, bob)
	require.NoError(t, err)

	order := testutil.Order{
		No:       testutil.OrderNo{N: 7},
		Customer: bob,
		Total:    1999,
		PlacedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Notes:    "not captured",
	}
	m := e.mementos.Create()
	require.NoError(t, memento.Capture(ctx, m, &order))
	assert.Equal(t, []string{"no", "customer", "total", "placedAt"}, m.Keys())

	token, _ := m.Token("customer")
	assert.Equal(t, "Customer:bob", token)

	parsed, err := e.mementos.Parse(m.String())
	require.NoError(t, err)

	var got testutil.Order
	require.NoError(t, memento.Restore(ctx, parsed, &got))
	assert.Equal(t, order.No, got.No)
	assert.Same(t, bob, got.Customer)
	assert.Equal(t, order.Total, got.Total)
	assert.True(t, order.PlacedAt.Equal(got.PlacedAt))
	assert.Empty(t, got.Notes)
}

func TestCaptureSkipsNilReferences(t *testing.T) {
	e := newEnv(t, nil)
	m := e.mementos.Create()

	require.NoError(t, memento.Capture(context.Background(), m, testutil.Order{No: testutil.OrderNo{N: 1}}))
	assert.False(t, m.Has("customer"))
}

func TestCaptureFailsOnUnbookmarkableReference(t *testing.T) {
	e := newEnv(t, nil)
	m := e.mementos.Create()

	err := memento.Capture(context.Background(), m, &testutil.Order{Customer: &testutil.Customer{}})
	assert.Error(t, err)
}

func TestRestoreLeavesUnresolvedReferenceUnset(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	bob := &testutil.Customer{ID: "bob"}
	b, err := e.memory.Put(ctx, bob)
	require.NoError(t, err)

	m := e.mementos.Create()
	require.NoError(t, memento.Capture(ctx, m, &testutil.Order{No: testutil.OrderNo{N: 2}, Customer: bob, Total: 5}))
	e.memory.Delete(b)

	var got testutil.Order
	require.NoError(t, memento.Restore(ctx, m, &got))
	assert.Nil(t, got.Customer)
	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, 2, got.No.N)
}

func TestRestoreAggregatesFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)

	// Payload with a corrupt total and a corrupt customer reference.
	m, err := e.mementos.ParsePayload("v1;no=ORD-3&total=lots&customer=nobody&placedAt=2024-01-02T03%3A04%3A05Z")
	require.NoError(t, err)

	var got testutil.Order
	err = memento.Restore(ctx, m, &got)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	assert.Equal(t, 3, got.No.N)
	assert.Equal(t, 2024, got.PlacedAt.Year())
	assert.Zero(t, got.Total)
	assert.Nil(t, got.Customer)
}

func TestRestoreRequiresPointer(t *testing.T) {
	e := newEnv(t, nil)
	m := e.mementos.Create()

	assert.Error(t, memento.Restore(context.Background(), m, testutil.Order{}))
	assert.Error(t, memento.Restore(context.Background(), m, (*testutil.Order)(nil)))
	assert.Error(t, memento.Capture(context.Background(), m, 42))
}

type tagged struct {
	Label string
}

func (t *tagged) MarshalMemento(ctx context.Context, m *memento.Memento) error {
	return m.Put(ctx, "label", "custom:"+t.Label)
}

func (t *tagged) UnmarshalMemento(ctx context.Context, m *memento.Memento) error {
	v, _, err := memento.Get[string](ctx, m, "label")
	t.Label = v
	return err
}

func TestMarshalerTakesOver(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	m := e.mementos.Create()

	require.NoError(t, memento.Capture(ctx, m, &tagged{Label: "x"}))
	assert.Equal(t, []string{"label"}, m.Keys())

	var got tagged
	require.NoError(t, memento.Restore(ctx, m, &got))
	assert.Equal(t, "custom:x", got.Label)
}

type address struct {
	City string
	Zip  string `memento:"zip"`
}

type site struct {
	address
	Label string
}

type relabelled struct {
	address
	City string
}

type mailbox struct {
	Zip string `memento:"zip"`
}

type twoZips struct {
	address
	mailbox
}

type borrowed struct {
	*address
	Label string
}

func TestCaptureRestoreEmbeddedStruct(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	m := e.mementos.Create()

	require.NoError(t, memento.Capture(ctx, m, &site{address: address{City: "Oslo", Zip: "0150"}, Label: "x"}))
	assert.Equal(t, []string{"City", "zip", "Label"}, m.Keys())

	parsed, err := e.mementos.Parse(m.String())
	require.NoError(t, err)

	var got site
	require.NoError(t, memento.Restore(ctx, parsed, &got))
	assert.Equal(t, "Oslo", got.City)
	assert.Equal(t, "0150", got.Zip)
	assert.Equal(t, "x", got.Label)
}

func TestOuterPropertyHidesEmbedded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	m := e.mementos.Create()

	require.NoError(t, memento.Capture(ctx, m, &relabelled{address: address{City: "inner", Zip: "1"}, City: "outer"}))
	assert.Equal(t, []string{"zip", "City"}, m.Keys())

	var got relabelled
	require.NoError(t, memento.Restore(ctx, m, &got))
	assert.Equal(t, "outer", got.City)
	assert.Empty(t, got.address.City)
}

func TestEmbeddedStructErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)

	err := memento.Capture(ctx, e.mementos.Create(), &twoZips{})
	assert.ErrorContains(t, err, "ambiguous property")

	err = memento.Capture(ctx, e.mementos.Create(), &borrowed{address: &address{City: "Oslo"}})
	assert.ErrorContains(t, err, "embedded pointer")

	var got borrowed
	assert.Error(t, memento.Restore(ctx, e.mementos.Create(), &got))
}

type pinned struct {
	Label string
	Ref   any
}

func TestCaptureRejectsPlainValueInInterfaceProperty(t *testing.T) {
	e := newEnv(t, nil)
	for name, ref := range map[string]any{
		"bookmark text": "Customer:bob",
		"number":        42,
	} {
		t.Run(name, func(t *testing.T) {
			m := e.mementos.Create()
			err := memento.Capture(context.Background(), m, &pinned{Label: "x", Ref: ref})
			assert.True(t, errors.Is(err, serial.ErrUnsupported), "got %v", err)
		})
	}
}

func TestInterfacePropertyHoldsReference(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	bob := &testutil.Customer{ID: "bob"}
	b, err := e.memory.Put(ctx, bob)
	require.NoError(t, err)

	m := e.mementos.Create()
	require.NoError(t, memento.Capture(ctx, m, &pinned{Label: "x", Ref: bob}))
	token, _ := m.Token("Ref")
	assert.Equal(t, "Customer:bob", token)

	var got pinned
	require.NoError(t, memento.Restore(ctx, m, &got))
	assert.Same(t, bob, got.Ref)

	e.memory.Delete(b)
	got = pinned{}
	require.NoError(t, memento.Restore(ctx, m, &got))
	assert.Nil(t, got.Ref)
	assert.Equal(t, "x", got.Label)
}

func TestRestoreRejectsPlainTokenInInterfaceProperty(t *testing.T) {
	e := newEnv(t, nil)
	m, err := e.mementos.ParsePayload("v1;Label=x&Ref=42")
	require.NoError(t, err)

	var got pinned
	err = memento.Restore(context.Background(), m, &got)
	assert.True(t, errors.Is(err, serial.ErrUnsupported), "got %v", err)
	assert.Nil(t, got.Ref)
	assert.Equal(t, "x", got.Label)
}
