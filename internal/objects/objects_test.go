package objects_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/testutil"
)

func demoTypes(t *testing.T) *objects.Types {
	t.Helper()
	types, err := objects.NewTypes(
		objects.Entity[testutil.Customer](testutil.CustomerType),
		objects.Entity[testutil.Order](testutil.OrderType),
		objects.ViewModel[testutil.CustomerSearch](testutil.CustomerSearchType),
	)
	require.NoError(t, err)
	return types
}

func TestNewTypesValidatesNames(t *testing.T) {
	for _, name := range []string{"", "has:colon", "has space", "1leading"} {
		_, err := objects.NewTypes(objects.Entity[testutil.Customer](name))
		assert.Error(t, err, "name %q", name)
	}
}

func TestNewTypesRejectsDuplicates(t *testing.T) {
	_, err := objects.NewTypes(
		objects.Entity[testutil.Customer]("A"),
		objects.Entity[testutil.Order]("A"),
	)
	assert.ErrorContains(t, err, "duplicate logical type")

	_, err = objects.NewTypes(
		objects.Entity[testutil.Customer]("A"),
		objects.Entity[testutil.Customer]("B"),
	)
	assert.ErrorContains(t, err, "registered as both")
}

func TestTypesLookups(t *testing.T) {
	types := demoTypes(t)

	spec, ok := types.Of(&testutil.Customer{ID: "x"})
	require.True(t, ok)
	assert.Equal(t, testutil.CustomerType, spec.LogicalType)
	assert.Equal(t, objects.SortEntity, spec.Sort)

	spec, ok = types.ByName(testutil.CustomerSearchType)
	require.True(t, ok)
	assert.Equal(t, objects.SortViewModel, spec.Sort)
	assert.IsType(t, &testutil.CustomerSearch{}, spec.New())

	_, ok = types.Of(testutil.Address{})
	assert.False(t, ok)

	names := []string{}
	for _, s := range types.Specs() {
		names = append(names, s.LogicalType)
	}
	assert.Equal(t, []string{"Customer", "demo.CustomerSearch", "demo.Order"}, names)
}

func TestEntityBookmark(t *testing.T) {
	types := demoTypes(t)
	ids := idstr.MustDefault(idstr.TextKeys[testutil.Key]())

	b, err := objects.EntityBookmark(types, ids, &testutil.Customer{ID: "abc-123"})
	require.NoError(t, err)
	assert.Equal(t, "Customer:abc-123", b.String())

	// Value receivers reach the pointer-receiver PrimaryKey.
	b, err = objects.EntityBookmark(types, ids, testutil.Order{No: testutil.OrderNo{N: 9}})
	require.NoError(t, err)
	assert.Equal(t, "demo.Order:ORD-9", b.String())
}

func TestEntityBookmarkNotBookmarkable(t *testing.T) {
	types := demoTypes(t)
	ids := idstr.MustDefault()

	cases := map[string]any{
		"nil":          nil,
		"nil pointer":  (*testutil.Customer)(nil),
		"undeclared":   &testutil.Address{},
		"view model":   &testutil.CustomerSearch{},
		"empty key":    &testutil.Customer{},
		"plain string": "Customer:abc",
	}
	for name, obj := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := objects.EntityBookmark(types, ids, obj)
			assert.True(t, objects.IsNotBookmarkable(err), "got %v", err)
		})
	}
}

func TestMemoryPutLookupDelete(t *testing.T) {
	ctx := context.Background()
	mem := objects.NewMemory(demoTypes(t), idstr.MustDefault())
	alice := &testutil.Customer{ID: "abc-123", Name: "Alice"}

	b, err := mem.Put(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Len())

	got, found, err := mem.Lookup(ctx, b)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, alice, got)

	assert.True(t, mem.Delete(b))
	assert.False(t, mem.Delete(b))

	_, found, err = mem.Lookup(ctx, b)
	require.NoError(t, err)
	assert.False(t, found)
}

type failingBridge struct{ err error }

func (f failingBridge) BookmarkFor(context.Context, any) (bookmark.Bookmark, error) {
	return bookmark.Bookmark{}, f.err
}

func (f failingBridge) Lookup(context.Context, bookmark.Bookmark) (any, bool, error) {
	return nil, false, f.err
}

func TestChainOrder(t *testing.T) {
	ctx := context.Background()
	types := demoTypes(t)
	ids := idstr.MustDefault()
	first := objects.NewMemory(types, ids)
	second := objects.NewMemory(types, ids)

	alice := &testutil.Customer{ID: "a"}
	b, err := second.Put(ctx, alice)
	require.NoError(t, err)

	chain := objects.NewChain(first)
	chain.Append(second)

	got, found, err := chain.Lookup(ctx, b)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, alice, got)

	_, found, err = chain.Lookup(ctx, bookmark.MustNew("Customer", "zzz"))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = chain.BookmarkFor(ctx, &testutil.Address{})
	assert.True(t, objects.IsNotBookmarkable(err))
}

func TestChainStopsOnHardError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	chain := objects.NewChain(failingBridge{err: boom}, objects.NewMemory(demoTypes(t), idstr.MustDefault()))

	_, err := chain.BookmarkFor(ctx, &testutil.Customer{ID: "a"})
	assert.ErrorIs(t, err, boom)

	_, _, err = chain.Lookup(ctx, bookmark.MustNew("Customer", "a"))
	assert.ErrorIs(t, err, boom)
}
