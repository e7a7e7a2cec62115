package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Logical type names used by the fixtures.
const (
	CustomerType       = "Customer"
	OrderType          = "demo.Order"
	OrderLineType      = "demo.OrderLine"
	CustomerSearchType = "demo.CustomerSearch"
)

// Customer is an entity keyed by a string ID.
type Customer struct {
	ID        string `memento:"id"`
	Name      string `memento:"name"`
	Preferred bool   `memento:"preferred"`
}

// PrimaryKey exposes the entity identity.
func (c *Customer) PrimaryKey() any { return c.ID }

// Key marks identifier value types that carry their own text form.
type Key interface {
	IsKey()
}

// OrderNo is a text key of the form "ORD-<n>".
type OrderNo struct {
	N int
}

// IsKey implements Key.
func (OrderNo) IsKey() {}

// MarshalText implements encoding.TextMarshaler.
func (o OrderNo) MarshalText() ([]byte, error) {
	return []byte("ORD-" + strconv.Itoa(o.N)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OrderNo) UnmarshalText(text []byte) error {
	s, ok := strings.CutPrefix(string(text), "ORD-")
	if !ok {
		return fmt.Errorf("order number %q lacks ORD- prefix", text)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("order number %q: %w", text, err)
	}
	o.N = n
	return nil
}

// Order is an entity keyed by an OrderNo and referencing a Customer.
type Order struct {
	No       OrderNo   `memento:"no"`
	Customer *Customer `memento:"customer"`
	Total    int64     `memento:"total"`
	PlacedAt time.Time `memento:"placedAt"`
	Notes    string    `memento:"-"`
}

// PrimaryKey exposes the entity identity.
func (o *Order) PrimaryKey() any { return o.No }

// LineKey is a composite key.
type LineKey struct {
	Order string `json:"order"`
	Line  int    `json:"line"`
}

// OrderLine is an entity keyed by a composite LineKey.
type OrderLine struct {
	Key      LineKey `memento:"key"`
	Product  string  `memento:"product"`
	Quantity int     `memento:"quantity"`
}

// PrimaryKey exposes the entity identity.
func (l *OrderLine) PrimaryKey() any { return l.Key }

// CustomerSearch is a view model; its identity is its own state.
type CustomerSearch struct {
	Query    string    `memento:"query"`
	Page     int       `memento:"page"`
	Selected *Customer `memento:"selected"`
	Score    float64   `memento:"score"`
}

// Address is a plain value object with no identity.
type Address struct {
	Street string
	City   string
}
