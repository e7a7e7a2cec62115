package idstr

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
)

// Composite returns a stringifier for a struct-valued key K, such as a
// multi-column primary key. The token is the URL-safe base64 (no padding)
// of K's JSON encoding; struct fields keep declaration order, so equal keys
// always produce equal tokens.
func Composite[K any]() Stringifier {
	return Of[K](compositeStringifier[K]{})
}

type compositeStringifier[K any] struct{}

func (compositeStringifier[K]) Enstring(v K) (string, error) {
	if reflect.TypeOf((*K)(nil)).Elem().Kind() != reflect.Struct {
		return "", fmt.Errorf("composite key %v is not a struct", reflect.TypeOf((*K)(nil)).Elem())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (compositeStringifier[K]) Destring(s string, _ Hint) (K, error) {
	var k K
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("composite key: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&k); err != nil {
		return k, fmt.Errorf("composite key: %w", err)
	}
	if dec.More() {
		return k, fmt.Errorf("composite key: trailing data")
	}
	return k, nil
}

// TextKeys returns a capability stringifier that handles every concrete type
// implementing the marker interface M whose values marshal to text and whose
// pointers unmarshal from it. One registration then serves a whole family of
// key types.
func TextKeys[M any]() Stringifier {
	marker := reflect.TypeOf((*M)(nil)).Elem()
	if marker.Kind() != reflect.Interface {
		panic(fmt.Sprintf("idstr: TextKeys marker %v is not an interface", marker))
	}
	return textKeys{marker: marker}
}

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

type textKeys struct {
	marker reflect.Type
}

func (c textKeys) Type() reflect.Type {
	return c.marker
}

func (c textKeys) Accepts(t reflect.Type) bool {
	if t == nil || t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer {
		return false
	}
	return t.Implements(c.marker) &&
		t.Implements(textMarshalerType) &&
		reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func (c textKeys) Enstring(v any) (string, error) {
	m, ok := v.(encoding.TextMarshaler)
	if !ok || !c.Accepts(reflect.TypeOf(v)) {
		return "", fmt.Errorf("%T is not a %v text key", v, c.marker)
	}
	text, err := m.MarshalText()
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func (c textKeys) Destring(s string, hint Hint) (any, error) {
	if !c.Accepts(hint.Target) {
		return nil, fmt.Errorf("%v is not a %v text key", hint.Target, c.marker)
	}
	ptr := reflect.New(hint.Target)
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
