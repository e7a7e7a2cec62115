// Package catalog loads logical type declarations from CUE.
//
// A catalog lets the command line and scenario files work with logical
// types that have no Go domain type. Every declared type is backed by a
// record.Record. The expected shape is:
//
//	types: {
//		"crm.Customer": {
//			sort: "entity"
//			key:  "string"
//			properties: {
//				name:      "string"
//				preferred: "bool"
//			}
//		}
//		"crm.Search": {
//			sort: "viewmodel"
//			properties: query: "string"
//		}
//	}
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/record"
	"github.com/roach88/keepsake/internal/serial"
)

// schema constrains the shape before declarations are compiled.
const schema = `
#Kind: "string" | "int" | "bool" | "uuid" | "time" | "ref"
#Type: {
	sort:        "entity" | "viewmodel"
	key?:        #Kind
	properties?: [string]: #Kind
}
types?: [string]: #Type
`

// CompileError is a declaration error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Property is one declared property.
type Property struct {
	Name string
	Kind Kind
}

// TypeDecl is one declared logical type.
type TypeDecl struct {
	LogicalType string
	Sort        objects.Sort
	Key         Kind // empty for view models
	Properties  []Property
	Pos         token.Pos
}

// Property returns the property declared as name.
func (d TypeDecl) Property(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Build returns a record of this type from raw key and property values.
// Every value is normalized by its kind; all problems are reported together.
func (d TypeDecl) Build(ctx context.Context, a *serial.Adapter, key string, values map[string]string) (*record.Record, error) {
	var errs *multierror.Error
	r := record.New(d.LogicalType, "")

	switch {
	case d.Sort == objects.SortEntity:
		token, err := d.Key.Normalize(ctx, a, key)
		switch {
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("key: %w", err))
		case token == "":
			errs = multierror.Append(errs, fmt.Errorf("key: empty"))
		}
		r.Key = token
	case key != "":
		errs = multierror.Append(errs, fmt.Errorf("%s is a view model and takes no key", d.LogicalType))
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := d.Property(name)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%s has no property %q", d.LogicalType, name))
			continue
		}
		token, err := p.Kind.Normalize(ctx, a, values[name])
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := r.Set(name, token); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

// Catalog is an immutable set of declarations.
type Catalog struct {
	decls []TypeDecl
}

// Decls returns the declarations ordered by logical type.
func (c *Catalog) Decls() []TypeDecl {
	return c.decls
}

// Lookup returns the declaration for a logical type.
func (c *Catalog) Lookup(logicalType string) (TypeDecl, bool) {
	i := sort.Search(len(c.decls), func(i int) bool { return c.decls[i].LogicalType >= logicalType })
	if i < len(c.decls) && c.decls[i].LogicalType == logicalType {
		return c.decls[i], true
	}
	return TypeDecl{}, false
}

// Specs returns one record-backed objects.Spec per declaration.
func (c *Catalog) Specs() []objects.Spec {
	specs := make([]objects.Spec, 0, len(c.decls))
	for _, d := range c.decls {
		specs = append(specs, record.Spec(d.LogicalType, d.Sort))
	}
	return specs
}

// Load reads every .cue file in dir as one CUE package.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("catalog: no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("catalog: loading CUE files: %w", inst.Err)
	}
	return Compile(ctx.BuildInstance(inst))
}

// LoadString compiles catalog source held in memory.
func LoadString(src, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename(filename)))
}

// Compile validates v against the catalog schema and extracts its
// declarations.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	s := v.Context().CompileString(schema, cue.Filename("catalog-schema.cue"))
	v = v.Unify(s)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return &Catalog{}, nil
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var errs *multierror.Error
	c := &Catalog{}
	for iter.Next() {
		decl, err := compileType(iter.Label(), iter.Value())
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		c.decls = append(c.decls, decl)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.Slice(c.decls, func(i, j int) bool { return c.decls[i].LogicalType < c.decls[j].LogicalType })
	if _, err := objects.NewTypes(c.Specs()...); err != nil {
		return nil, err
	}
	return c, nil
}

func compileType(name string, v cue.Value) (TypeDecl, error) {
	decl := TypeDecl{LogicalType: name, Pos: v.Pos()}

	sortStr, err := v.LookupPath(cue.ParsePath("sort")).String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	if decl.Sort, err = objects.ParseSort(sortStr); err != nil {
		return decl, &CompileError{Field: name + ".sort", Message: err.Error(), Pos: v.Pos()}
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	switch {
	case decl.Sort == objects.SortEntity && !keyVal.Exists():
		return decl, &CompileError{Field: name + ".key", Message: "entities must declare a key kind", Pos: v.Pos()}
	case decl.Sort == objects.SortViewModel && keyVal.Exists():
		return decl, &CompileError{Field: name + ".key", Message: "view models are identified by their state and take no key", Pos: keyVal.Pos()}
	case keyVal.Exists():
		key, err := keyVal.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Key = Kind(key)
		if !decl.Key.ValidKey() {
			return decl, &CompileError{Field: name + ".key", Message: fmt.Sprintf("kind %q cannot be a key", key), Pos: keyVal.Pos()}
		}
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			return decl, formatCUEError(err)
		}
		for iter.Next() {
			prop := iter.Label()
			kind, err := iter.Value().String()
			if err != nil {
				return decl, formatCUEError(err)
			}
			if len(prop) > 0 && prop[0] == '@' {
				return decl, &CompileError{Field: name + ".properties", Message: fmt.Sprintf("property %q uses the reserved '@' prefix", prop), Pos: iter.Value().Pos()}
			}
			decl.Properties = append(decl.Properties, Property{Name: prop, Kind: Kind(kind)})
		}
	}
	sort.Slice(decl.Properties, func(i, j int) bool { return decl.Properties[i].Name < decl.Properties[j].Name })
	return decl, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
