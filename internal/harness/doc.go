// Package harness runs memento scenarios written in YAML.
//
// A scenario names a catalog directory, declares the objects it works with
// and then drives mementos through a list of steps. Objects are catalog
// records; entities live in an in-memory object manager so a scenario can
// delete them and watch references go absent.
//
// # Scenario Format
//
//	name: customer_reference
//	description: "What this scenario shows"
//	catalog: ../catalog
//	codec: url
//	objects:
//	  - name: alice
//	    type: crm.Customer
//	    key: abc-123
//	    properties: { name: Alice }
//	steps:
//	  - { op: put, memento: m, key: owner, object: alice }
//	  - { op: put, memento: m, key: note, kind: string, value: hi }
//	  - { op: export, memento: m }
//	  - { op: parse, memento: m2, from: m }
//	  - { op: expect, memento: m2, key: owner, object: alice }
//	  - { op: delete, object: alice }
//	  - { op: expect, memento: m2, key: owner, absent: true }
//
// A property value of the form "@name" is replaced by the bookmark of the
// object declared earlier under that name.
//
// # Steps
//
//   - put: store a kind-typed value or a declared object under key
//   - export: record the external form of a memento
//   - parse: parse the external form of another memento, or literal text
//   - bookmark: record the bookmark of an object, optionally checking it
//   - delete: remove an entity from the object manager
//   - expect: read key back as a value, as an object, or as absent
//
// A step marked fails: true passes only if the operation returns an error.
//
// # Deterministic Output
//
// The trace records the tokens each step produced. With the url codec the
// trace is byte-for-byte reproducible, which RunWithGolden compares against
// testdata/golden/<name>.golden.
package harness
