// Package memento captures property values as an ordered key/token map with
// a single URL-safe external form.
//
// Values go in and come out through a serial.Adapter, so a memento holds
// only strings: plain values in their text form and domain objects as
// bookmarks. A reference whose object has since been deleted reads back as
// absent.
//
// # External form
//
// The payload is "v1;" followed by key=token pairs joined with '&', keys and
// tokens query-escaped, in insertion order. A Codec then makes the payload
// URL-safe. Parse rejects anything it did not produce; there is no partial
// result.
package memento

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/roach88/keepsake/internal/serial"
)

const payloadHeader = "v1;"

// Mementos creates and parses mementos bound to one adapter and codec.
type Mementos struct {
	adapter *serial.Adapter
	codec   Codec
}

// New returns a factory. A nil codec means URLCodec.
func New(adapter *serial.Adapter, codec Codec) *Mementos {
	if codec == nil {
		codec = URLCodec{}
	}
	return &Mementos{adapter: adapter, codec: codec}
}

// Adapter returns the serializing adapter.
func (f *Mementos) Adapter() *serial.Adapter {
	return f.adapter
}

// Codec returns the external codec.
func (f *Mementos) Codec() Codec {
	return f.codec
}

// Create returns an empty memento.
func (f *Mementos) Create() *Memento {
	return &Memento{factory: f, tokens: make(map[string]string)}
}

// Parse reads an external form produced by String.
func (f *Mementos) Parse(s string) (*Memento, error) {
	if s == "" {
		return nil, &ParseError{Input: s, Reason: "empty input"}
	}
	payload, err := f.codec.Decode(s)
	if err != nil {
		return nil, &ParseError{Input: s, Reason: f.codec.Name() + " decoding failed", Err: err}
	}
	m, perr := f.parsePayload(string(payload))
	if perr != nil {
		perr.Input = s
		return nil, perr
	}
	return m, nil
}

// ParsePayload reads the decoded payload form.
func (f *Mementos) ParsePayload(payload string) (*Memento, error) {
	m, err := f.parsePayload(payload)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (f *Mementos) parsePayload(payload string) (*Memento, *ParseError) {
	fail := func(reason string, err error) *ParseError {
		return &ParseError{Input: payload, Reason: reason, Err: err}
	}
	if !utf8.ValidString(payload) {
		return nil, fail("payload is not valid UTF-8", nil)
	}
	body, ok := strings.CutPrefix(payload, payloadHeader)
	if !ok {
		return nil, fail("missing "+payloadHeader+" header", nil)
	}

	m := f.Create()
	if body == "" {
		return m, nil
	}
	for i, pair := range strings.Split(body, "&") {
		rawKey, rawToken, found := strings.Cut(pair, "=")
		if !found {
			return nil, fail(fmt.Sprintf("entry %d has no '='", i), nil)
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fail(fmt.Sprintf("entry %d key", i), err)
		}
		token, err := url.QueryUnescape(rawToken)
		if err != nil {
			return nil, fail(fmt.Sprintf("entry %d token", i), err)
		}
		if key == "" {
			return nil, fail(fmt.Sprintf("entry %d has an empty key", i), nil)
		}
		if m.Has(key) {
			return nil, fail(fmt.Sprintf("duplicate key %q", key), nil)
		}
		m.set(key, token)
	}
	return m, nil
}

// Memento is an ordered key/token map. It is not safe for concurrent use.
type Memento struct {
	factory *Mementos
	keys    []string
	tokens  map[string]string
}

// Put stores the token for value under key, replacing any previous token
// while keeping the key's original position. A nil value removes the key.
func (m *Memento) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	if isNil(value) {
		m.Remove(key)
		return nil
	}
	token, err := m.factory.adapter.Write(ctx, value)
	if err != nil {
		return fmt.Errorf("memento: put %q: %w", key, err)
	}
	m.set(key, token)
	return nil
}

func (m *Memento) set(key, token string) {
	if _, ok := m.tokens[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.tokens[key] = token
}

// Get reads the value under key as target. found is false when the key is
// not set or its object reference no longer resolves.
func (m *Memento) Get(ctx context.Context, key string, target reflect.Type) (v any, found bool, err error) {
	token, ok := m.tokens[key]
	if !ok {
		return nil, false, nil
	}
	v, found, err = m.factory.adapter.Read(ctx, target, token)
	if err != nil {
		return nil, false, fmt.Errorf("memento: get %q: %w", key, err)
	}
	return v, found, nil
}

// Get is the typed form of Memento.Get.
func Get[T any](ctx context.Context, m *Memento, key string) (T, bool, error) {
	var zero T
	v, found, err := m.Get(ctx, key, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil || !found || v == nil {
		return zero, found, err
	}
	return v.(T), true, nil
}

// Token returns the raw token under key.
func (m *Memento) Token(key string) (string, bool) {
	token, ok := m.tokens[key]
	return token, ok
}

// Has reports whether key is set.
func (m *Memento) Has(key string) bool {
	_, ok := m.tokens[key]
	return ok
}

// Remove deletes key and reports whether it was set.
func (m *Memento) Remove(key string) bool {
	if _, ok := m.tokens[key]; !ok {
		return false
	}
	delete(m.tokens, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns the populated keys in insertion order.
func (m *Memento) Keys() []string {
	return slices.Clone(m.keys)
}

// Len returns the number of keys.
func (m *Memento) Len() int {
	return len(m.keys)
}

// Payload returns the decoded external form.
func (m *Memento) Payload() string {
	var b strings.Builder
	b.WriteString(payloadHeader)
	for i, key := range m.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(m.tokens[key]))
	}
	return b.String()
}

// String returns the URL-safe external form.
func (m *Memento) String() string {
	s, err := m.factory.codec.Encode([]byte(m.Payload()))
	if err != nil {
		// Codecs encode in memory.
		panic(fmt.Sprintf("memento: %s encode: %v", m.factory.codec.Name(), err))
	}
	return s
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
