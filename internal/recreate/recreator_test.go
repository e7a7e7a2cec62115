package recreate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/recreate"
	"github.com/roach88/keepsake/internal/serial"
	"github.com/roach88/keepsake/internal/testutil"
)

type env struct {
	recreator *recreate.Recreator
	memory    *objects.Memory
	mementos  *memento.Mementos
}

func newEnv(t *testing.T) env {
	t.Helper()
	types := objects.MustTypes(
		objects.Entity[testutil.Customer](testutil.CustomerType),
		objects.ViewModel[testutil.CustomerSearch](testutil.CustomerSearchType),
	)
	ids := idstr.MustDefault()
	chain := objects.NewChain()
	mementos := memento.New(serial.New(ids, types, chain), nil)
	mem := objects.NewMemory(types, ids)
	rec := recreate.New(types, mementos)
	chain.Append(mem, rec)
	return env{recreator: rec, memory: mem, mementos: mementos}
}

func TestViewModelIdentityIsItsState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := &testutil.Customer{ID: "abc-123"}
	aliceRef, err := e.memory.Put(ctx, alice)
	require.NoError(t, err)

	vm := &testutil.CustomerSearch{Query: "al&ice", Page: 2, Selected: alice, Score: 0.75}
	b, err := e.recreator.BookmarkFor(ctx, vm)
	require.NoError(t, err)
	assert.Equal(t, testutil.CustomerSearchType, b.LogicalType())

	again, err := e.recreator.BookmarkFor(ctx, &testutil.CustomerSearch{Query: "al&ice", Page: 2, Selected: alice, Score: 0.75})
	require.NoError(t, err)
	assert.Equal(t, b, again)

	parsed, ok := bookmark.Parse(b.String())
	require.True(t, ok)

	obj, found, err := e.recreator.Lookup(ctx, parsed)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vm, obj)

	// The selected customer goes away; the view model still recreates.
	e.memory.Delete(aliceRef)
	obj, found, err = e.recreator.Lookup(ctx, parsed)
	require.NoError(t, err)
	require.True(t, found)
	got := obj.(*testutil.CustomerSearch)
	assert.Nil(t, got.Selected)
	assert.Equal(t, "al&ice", got.Query)
}

func TestViewModelAsMementoValue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	m := e.mementos.Create()
	require.NoError(t, m.Put(ctx, "search", &testutil.CustomerSearch{Query: "x", Page: 1}))
	token, _ := m.Token("search")
	assert.Contains(t, token, testutil.CustomerSearchType+":")

	parsed, err := e.mementos.Parse(m.String())
	require.NoError(t, err)
	got, found, err := memento.Get[*testutil.CustomerSearch](ctx, parsed, "search")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "x", got.Query)
	assert.Equal(t, 1, got.Page)
}

func TestRecreatorRejectsEntities(t *testing.T) {
	e := newEnv(t)

	_, err := e.recreator.BookmarkFor(context.Background(), &testutil.Customer{ID: "a"})
	assert.True(t, objects.IsNotBookmarkable(err))

	_, found, err := e.recreator.Lookup(context.Background(), bookmark.MustNew(testutil.CustomerType, "a"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCorruptIdentifier(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.recreator.Lookup(context.Background(), bookmark.MustNew(testutil.CustomerSearchType, "not-a-memento"))
	assert.True(t, memento.IsParseError(err))
}
