// Package session assembles one object-reference stack for a catalog: the
// stringifier registry, the declared types, the serializing adapter, the
// memento factory and the bridges that resolve bookmarks.
//
// The adapter needs the bridge and the view-model recreator needs the
// mementos, so the bridge is a chain that is filled after the adapter
// exists.
package session

import (
	"context"
	"fmt"

	"github.com/roach88/keepsake/internal/catalog"
	"github.com/roach88/keepsake/internal/idstr"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/persist"
	"github.com/roach88/keepsake/internal/record"
	"github.com/roach88/keepsake/internal/recreate"
	"github.com/roach88/keepsake/internal/serial"
	"github.com/roach88/keepsake/internal/store"
)

// Session is a wired stack. Entity storage is attached with UseMemory or
// UseStore; view models resolve without it.
type Session struct {
	Catalog  *catalog.Catalog
	Types    *objects.Types
	IDs      *idstr.Registry
	Adapter  *serial.Adapter
	Mementos *memento.Mementos

	chain *objects.Chain
}

// New wires a session for cat. A nil codec means the plain URL codec.
func New(cat *catalog.Catalog, codec memento.Codec) (*Session, error) {
	types, err := objects.NewTypes(cat.Specs()...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	ids, err := idstr.Default()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	chain := objects.NewChain()
	adapter := serial.New(ids, types, chain)
	mementos := memento.New(adapter, codec)
	chain.Append(recreate.New(types, mementos))

	return &Session{
		Catalog:  cat,
		Types:    types,
		IDs:      ids,
		Adapter:  adapter,
		Mementos: mementos,
		chain:    chain,
	}, nil
}

// Bridge returns the bridge the adapter resolves through.
func (s *Session) Bridge() objects.Bridge {
	return s.chain
}

// UseMemory attaches an in-process object manager for entities.
func (s *Session) UseMemory() *objects.Memory {
	mem := objects.NewMemory(s.Types, s.IDs)
	s.chain.Append(mem)
	return mem
}

// UseStore attaches a repository over st for entities.
func (s *Session) UseStore(st *store.Store) *persist.Repository {
	repo := persist.New(st, s.Types, s.IDs, s.Mementos)
	s.chain.Append(repo)
	return repo
}

// Build returns a record of logicalType from raw values.
func (s *Session) Build(ctx context.Context, logicalType, key string, values map[string]string) (*record.Record, error) {
	decl, ok := s.Catalog.Lookup(logicalType)
	if !ok {
		return nil, fmt.Errorf("unknown logical type %q", logicalType)
	}
	r, err := decl.Build(ctx, s.Adapter, key, values)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", logicalType, err)
	}
	return r, nil
}
