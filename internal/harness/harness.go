package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/keepsake/internal/catalog"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/record"
	"github.com/roach88/keepsake/internal/session"
)

var recordPtrType = reflect.TypeOf((**record.Record)(nil)).Elem()

// MismatchError is a step that ran but did not produce what the scenario
// declared. A fails: true step never excuses it.
type MismatchError struct {
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

// Harness holds the state of one scenario run.
type Harness struct {
	session  *session.Session
	memory   *objects.Memory
	objects  map[string]*record.Record
	mementos map[string]*memento.Memento
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh session with its own in-memory object manager.
// An error is returned only when the scenario cannot start: its catalog
// does not load or one of its objects cannot be built. Misbehaving steps
// are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with step progress logged to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	cat, err := catalog.Load(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	codec, err := memento.CodecByName(scenario.Codec)
	if err != nil {
		return nil, err
	}
	s, err := session.New(cat, codec)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		session:  s,
		memory:   s.UseMemory(),
		objects:  make(map[string]*record.Record, len(scenario.Objects)),
		mementos: make(map[string]*memento.Memento),
		logger:   logger,
	}
	if err := h.buildObjects(ctx, scenario.Objects); err != nil {
		return nil, fmt.Errorf("failed to build objects: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.execute(ctx, i, step, result)
	}
	return result, nil
}

// buildObjects creates the declared records and puts entities into the
// object manager.
func (h *Harness) buildObjects(ctx context.Context, decls []ObjectDecl) error {
	for _, decl := range decls {
		values := make(map[string]string, len(decl.Properties))
		for name, v := range decl.Properties {
			if ref, ok := strings.CutPrefix(v, "@"); ok {
				obj, declared := h.objects[ref]
				if !declared {
					return fmt.Errorf("%s.%s: object %q is not declared before use", decl.Name, name, ref)
				}
				b, err := h.session.Bridge().BookmarkFor(ctx, obj)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", decl.Name, name, err)
				}
				v = b.String()
			}
			values[name] = v
		}

		r, err := h.session.Build(ctx, decl.Type, decl.Key, values)
		if err != nil {
			return fmt.Errorf("%s: %w", decl.Name, err)
		}
		if spec, _ := h.session.Types.ByName(decl.Type); spec.Sort == objects.SortEntity {
			if _, err := h.memory.Put(ctx, r); err != nil {
				return fmt.Errorf("%s: %w", decl.Name, err)
			}
		}
		h.objects[decl.Name] = r
	}
	return nil
}

// execute runs one step and records it.
func (h *Harness) execute(ctx context.Context, i int, st Step, result *Result) {
	ev := TraceEvent{Step: i, Op: st.Op, Memento: st.Memento, Key: st.Key, Object: st.Object}

	outcome, token, err := h.apply(ctx, st)
	var mismatch *MismatchError
	switch {
	case errors.As(err, &mismatch):
		ev.Outcome, ev.Token = outcome, token
		result.AddError(fmt.Sprintf("step %d (%s): %v", i, st.Op, err))
	case err != nil:
		ev.Outcome = OutcomeError
		if !st.Fails {
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, st.Op, err))
		}
	case st.Fails:
		ev.Outcome, ev.Token = outcome, token
		result.AddError(fmt.Sprintf("step %d (%s): expected failure, got %s", i, st.Op, outcome))
	default:
		ev.Outcome, ev.Token = outcome, token
	}
	result.AddTrace(ev)

	h.logger.Info("step completed",
		"step", i,
		"op", st.Op,
		"outcome", ev.Outcome,
	)
}

func (h *Harness) apply(ctx context.Context, st Step) (outcome, token string, err error) {
	switch st.Op {
	case OpPut:
		return h.put(ctx, st)
	case OpExport:
		m, err := h.memento(st.Memento)
		if err != nil {
			return "", "", err
		}
		return OutcomeOK, m.String(), nil
	case OpParse:
		return h.parse(st)
	case OpBookmark:
		b, err := h.session.Bridge().BookmarkFor(ctx, h.objects[st.Object])
		if err != nil {
			return "", "", err
		}
		if st.Value != nil && *st.Value != b.String() {
			return OutcomeOK, b.String(), &MismatchError{Expected: *st.Value, Actual: b.String()}
		}
		return OutcomeOK, b.String(), nil
	case OpDelete:
		b, err := h.session.Bridge().BookmarkFor(ctx, h.objects[st.Object])
		if err != nil {
			return "", "", err
		}
		if !h.memory.Delete(b) {
			return "", "", fmt.Errorf("%s is not held by the object manager", b)
		}
		return OutcomeOK, b.String(), nil
	case OpExpect:
		return h.expect(ctx, st)
	}
	return "", "", fmt.Errorf("unknown op %q", st.Op)
}

func (h *Harness) put(ctx context.Context, st Step) (string, string, error) {
	m, ok := h.mementos[st.Memento]
	if !ok {
		m = h.session.Mementos.Create()
		h.mementos[st.Memento] = m
	}

	var v any
	if st.Object != "" {
		v = h.objects[st.Object]
	} else {
		var err error
		if v, _, err = h.session.Adapter.Read(ctx, catalog.Kind(st.Kind).Type(), *st.Value); err != nil {
			return "", "", err
		}
	}
	if err := m.Put(ctx, st.Key, v); err != nil {
		return "", "", err
	}
	token, _ := m.Token(st.Key)
	return OutcomeOK, token, nil
}

func (h *Harness) parse(st Step) (string, string, error) {
	var text string
	if st.Text != nil {
		text = *st.Text
	} else {
		src, err := h.memento(st.From)
		if err != nil {
			return "", "", err
		}
		text = src.String()
	}
	m, err := h.session.Mementos.Parse(text)
	if err != nil {
		return "", "", err
	}
	h.mementos[st.Memento] = m
	return OutcomeOK, "", nil
}

func (h *Harness) expect(ctx context.Context, st Step) (string, string, error) {
	m, err := h.memento(st.Memento)
	if err != nil {
		return "", "", err
	}

	switch {
	case st.Absent:
		_, found, err := m.Get(ctx, st.Key, recordPtrType)
		if err != nil {
			return "", "", err
		}
		if found {
			token, _ := m.Token(st.Key)
			return OutcomeFound, token, &MismatchError{Expected: "absent", Actual: "resolved " + token}
		}
		return OutcomeAbsent, "", nil

	case st.Object != "":
		want, err := h.session.Bridge().BookmarkFor(ctx, h.objects[st.Object])
		if err != nil {
			return "", "", err
		}
		v, found, err := m.Get(ctx, st.Key, recordPtrType)
		if err != nil {
			return "", "", err
		}
		if !found {
			return OutcomeAbsent, "", &MismatchError{Expected: want.String(), Actual: "absent"}
		}
		got, err := h.session.Bridge().BookmarkFor(ctx, v)
		if err != nil {
			return "", "", err
		}
		if !got.Equal(want) {
			return OutcomeFound, got.String(), &MismatchError{Expected: want.String(), Actual: got.String()}
		}
		return OutcomeFound, got.String(), nil

	default:
		kind := catalog.Kind(st.Kind)
		wantToken, err := kind.Normalize(ctx, h.session.Adapter, *st.Value)
		if err != nil {
			return "", "", fmt.Errorf("expected value: %w", err)
		}
		v, found, err := m.Get(ctx, st.Key, kind.Type())
		if err != nil {
			return "", "", err
		}
		if !found {
			return OutcomeAbsent, "", &MismatchError{Expected: wantToken, Actual: "absent"}
		}
		gotToken, err := h.session.Adapter.Write(ctx, v)
		if err != nil {
			return "", "", err
		}
		if gotToken != wantToken {
			return OutcomeFound, gotToken, &MismatchError{Expected: wantToken, Actual: gotToken}
		}
		return OutcomeFound, gotToken, nil
	}
}

func (h *Harness) memento(name string) (*memento.Memento, error) {
	m, ok := h.mementos[name]
	if !ok {
		return nil, fmt.Errorf("no memento named %q", name)
	}
	return m, nil
}
