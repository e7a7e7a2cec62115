package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/keepsake/internal/catalog"
	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/persist"
	"github.com/roach88/keepsake/internal/session"
	"github.com/roach88/keepsake/internal/store"
)

// env is what a command works against: settings, a wired session and,
// when opened, the store and its repository.
type env struct {
	cfg     config.Config
	session *session.Session
	store   *store.Store
	repo    *persist.Repository
}

// Close releases the store if one was opened.
func (e *env) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// openEnv loads settings and the catalog. An unset catalog gives an empty
// one, enough for untyped mementos. With withStore the configured database
// is opened and attached for entity lookups.
func openEnv(opts *RootOptions, f *OutputFormatter, withStore bool) (*env, error) {
	cfg, err := opts.Settings()
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeInvalidConfig, err)
	}

	cat := &catalog.Catalog{}
	if cfg.Catalog != "" {
		loaded, errs := LoadCatalog(cfg.Catalog)
		if len(errs) > 0 {
			var loadErr *LoadError
			if errors.As(errs[0], &loadErr) {
				return nil, fail(f, ExitCommandError, loadErr.Code, loadErr)
			}
			return nil, fail(f, ExitCommandError, ErrCodeLoadFailed, errs[0])
		}
		cat = loaded
		f.VerboseLog("Loaded %d type(s) from %s", len(cat.Decls()), cfg.Catalog)
	}

	codec, err := memento.CodecByName(cfg.Codec)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeInvalidConfig, err)
	}
	s, err := session.New(cat, codec)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeBuildFailed, err)
	}

	e := &env{cfg: cfg, session: s}
	if withStore {
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, fail(f, ExitCommandError, ErrCodeBuildFailed, fmt.Errorf("open database %s: %w", cfg.Database, err))
		}
		e.store = st
		e.repo = s.UseStore(st)
	}
	return e, nil
}

// requireCatalog fails unless a catalog is configured.
func (e *env) requireCatalog(f *OutputFormatter) error {
	if e.cfg.Catalog == "" {
		return fail(f, ExitCommandError, ErrCodeNotFound, errors.New("no catalog configured: set catalog in keepsake.toml or pass --catalog"))
	}
	return nil
}
