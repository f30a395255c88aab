// Package graph provides the stateful graph orchestration engine that the
// conversational agents are built on.
//
// A graph is a named set of nodes connected by static and conditional edges.
// Nodes read an immutable State and return a partial Update; the Engine merges
// updates into the next State through per-field reducers declared in a Schema.
package graph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Reducer combines the accumulated value of a field with an incoming value.
//
// Reducers must be pure: the Engine relies on them to rebuild state
// deterministically from a checkpoint and a sequence of updates.
type Reducer[T any] func(current, incoming T) T

// Replace is the default reducer: the incoming value wins.
func Replace[T any](_, incoming T) T {
	return incoming
}

// Append concatenates incoming items onto the accumulated slice.
//
// The result is always a freshly allocated slice so that earlier snapshots
// sharing the accumulated backing array are never modified.
func Append[E any](current, incoming []E) []E {
	out := make([]E, 0, len(current)+len(incoming))
	out = append(out, current...)
	return append(out, incoming...)
}

// OverwriteIfPresent keeps the accumulated value when the incoming value is
// empty (nil, zero, or a zero-length collection).
func OverwriteIfPresent[T any](current, incoming T) T {
	if isEmpty(incoming) {
		return current
	}
	return incoming
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}

type reducerKind int

const (
	kindCustom reducerKind = iota
	kindReplace
	kindAppend
	kindOverwrite
)

// FieldSpec is the type-erased view of a Field that a Schema stores.
// It is implemented only by *Field[T].
type FieldSpec interface {
	Name() string
	Type() reflect.Type

	defaultValue() any
	reduce(current, incoming any) (any, error)
	coerce(v any) (any, error)
	decode(raw json.RawMessage) (any, error)
	delta(before, after any) (any, bool)
}

// Field declares a named, typed state field and its reducer.
//
// Fields are usually declared once at package level and shared by every
// schema that carries them:
//
//	var Messages = graph.AppendField[model.Message]("messages")
//
//	func reply(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
//		history := Messages.Get(s)
//		...
//		return graph.Continue(Messages.Set([]model.Message{answer}))
//	}
type Field[T any] struct {
	name    string
	reducer Reducer[T]
	kind    reducerKind
	def     T
}

// NewField declares a field with a custom reducer. A nil reducer means Replace.
func NewField[T any](name string, reducer Reducer[T]) *Field[T] {
	if reducer == nil {
		return &Field[T]{name: name, reducer: Replace[T], kind: kindReplace}
	}
	return &Field[T]{name: name, reducer: reducer, kind: kindCustom}
}

// ReplaceField declares a field where the latest update wins.
func ReplaceField[T any](name string) *Field[T] {
	return &Field[T]{name: name, reducer: Replace[T], kind: kindReplace}
}

// AppendField declares a list field where updates are concatenated in merge order.
func AppendField[E any](name string) *Field[[]E] {
	return &Field[[]E]{name: name, reducer: Append[E], kind: kindAppend}
}

// OptionalField declares a field whose value survives updates that carry an
// empty value. Use Clear to reset it explicitly.
func OptionalField[T any](name string) *Field[T] {
	return &Field[T]{name: name, reducer: OverwriteIfPresent[T], kind: kindOverwrite}
}

// WithDefault returns a copy of the field with the given default value.
func (f *Field[T]) WithDefault(v T) *Field[T] {
	cp := *f
	cp.def = v
	return &cp
}

// Name returns the field name used in updates and serialized state.
func (f *Field[T]) Name() string { return f.name }

// Type returns the Go type of the field's values.
func (f *Field[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

// Default returns the field's default value.
func (f *Field[T]) Default() T { return f.def }

// Get reads the field from s, returning the default when s does not hold it.
func (f *Field[T]) Get(s State) T {
	v, ok := s.values[f.name]
	if !ok {
		return f.def
	}
	t, ok := v.(T)
	if !ok {
		return f.def
	}
	return t
}

// Set returns a single-field update carrying v.
func (f *Field[T]) Set(v T) Update {
	return Update{f.name: v}
}

// Clear returns an update that resets the field to its default, bypassing the reducer.
func (f *Field[T]) Clear() Update {
	return Update{f.name: clearValue{}}
}

func (f *Field[T]) defaultValue() any { return f.def }

func (f *Field[T]) reduce(current, incoming any) (any, error) {
	if _, ok := incoming.(clearValue); ok {
		return f.def, nil
	}
	in, err := f.coerce(incoming)
	if err != nil {
		return nil, err
	}
	cur, ok := current.(T)
	if !ok {
		cur = f.def
	}
	return f.reducer(cur, in.(T)), nil
}

func (f *Field[T]) coerce(v any) (any, error) {
	switch val := v.(type) {
	case T:
		return val, nil
	case nil:
		var zero T
		return zero, nil
	case json.RawMessage:
		return f.decode(val)
	case []byte:
		return f.decode(val)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("expected %s, got %T", f.Type(), v)
	}
	out, err := f.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("expected %s, got %T", f.Type(), v)
	}
	return out, nil
}

func (f *Field[T]) decode(raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.name, err)
	}
	return v, nil
}

// delta expresses the change from before to after as an incoming value for
// this field's reducer. Append fields yield only the appended suffix.
func (f *Field[T]) delta(before, after any) (any, bool) {
	if reflect.DeepEqual(before, after) {
		return nil, false
	}
	switch f.kind {
	case kindAppend:
		b, a := reflect.ValueOf(before), reflect.ValueOf(after)
		if b.IsValid() && a.IsValid() && b.Kind() == reflect.Slice && a.Kind() == reflect.Slice &&
			a.Len() >= b.Len() && reflect.DeepEqual(b.Interface(), a.Slice(0, b.Len()).Interface()) {
			return a.Slice(b.Len(), a.Len()).Interface(), true
		}
		return after, true
	case kindOverwrite:
		if isEmpty(after) {
			return clearValue{}, true
		}
	}
	return after, true
}

// clearValue marks a field reset inside an Update.
type clearValue struct{}

// Update is a partial state produced by one node invocation.
// Only fields declared in the active schema may appear.
type Update map[string]any

// Updates combines several updates into one. Later entries win on key collisions.
func Updates(parts ...Update) Update {
	out := Update{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// State is an immutable snapshot of a graph's fields. A new State is produced
// by every merge; existing snapshots are never modified.
type State struct {
	values map[string]any
}

// Value returns the raw value of a field.
func (s State) Value(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Map returns a shallow copy of the state's values.
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Schema is an ordered set of fields defining a graph's state shape.
type Schema struct {
	name   string
	fields []FieldSpec
	index  map[string]FieldSpec
}

// NewSchema builds a schema from the given fields. Field names must be unique.
func NewSchema(name string, fields ...FieldSpec) (*Schema, error) {
	s := &Schema{name: name, index: make(map[string]FieldSpec, len(fields))}
	for _, f := range fields {
		if f == nil || f.Name() == "" {
			return nil, &EngineError{Message: fmt.Sprintf("schema %s: field without a name", name), Code: "INVALID_SCHEMA"}
		}
		if _, dup := s.index[f.Name()]; dup {
			return nil, &EngineError{Message: fmt.Sprintf("schema %s: duplicate field %q", name, f.Name()), Code: "INVALID_SCHEMA"}
		}
		s.fields = append(s.fields, f)
		s.index[f.Name()] = f
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package-level schema declarations.
func MustSchema(name string, fields ...FieldSpec) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns the field names in declaration order.
func (s *Schema) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name()
	}
	return names
}

// Field looks up a declared field.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	f, ok := s.index[name]
	return f, ok
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Defaults returns the state every run starts from.
func (s *Schema) Defaults() State {
	values := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		values[f.Name()] = f.defaultValue()
	}
	return State{values: values}
}

// Merge applies u to acc through each field's reducer and returns the new state.
// Fields absent from u are carried over unchanged. acc is not modified.
//
// Merge fails with a *SchemaViolationError when u names an undeclared field
// or carries a value of the wrong type; acc is returned unchanged in that case.
func (s *Schema) Merge(acc State, u Update) (State, error) {
	if len(u) == 0 {
		return acc, nil
	}
	keys := make([]string, 0, len(u))
	for k := range u {
		if !s.Has(k) {
			return acc, &SchemaViolationError{Schema: s.name, Field: k, Reason: "field is not declared"}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]any, len(s.fields))
	for k, v := range acc.values {
		values[k] = v
	}
	for _, k := range keys {
		f := s.index[k]
		current, ok := values[k]
		if !ok {
			current = f.defaultValue()
		}
		merged, err := f.reduce(current, u[k])
		if err != nil {
			return acc, &SchemaViolationError{Schema: s.name, Field: k, Reason: err.Error()}
		}
		values[k] = merged
	}
	return State{values: values}, nil
}

// Encode serializes a state snapshot as a JSON object keyed by field name.
func (s *Schema) Encode(st State) (json.RawMessage, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := st.values[f.Name()]
		if !ok {
			v = f.defaultValue()
		}
		out[f.Name()] = v
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", s.name, err)
	}
	return raw, nil
}

// Decode rebuilds a state snapshot produced by Encode. Missing fields take
// their defaults; undeclared fields are a schema violation.
func (s *Schema) Decode(raw json.RawMessage) (State, error) {
	st := s.Defaults()
	if len(raw) == 0 {
		return st, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return st, fmt.Errorf("decode %s state: %w", s.name, err)
	}
	for name, fraw := range fields {
		f, ok := s.index[name]
		if !ok {
			return st, &SchemaViolationError{Schema: s.name, Field: name, Reason: "field is not declared"}
		}
		v, err := f.decode(fraw)
		if err != nil {
			return st, &SchemaViolationError{Schema: s.name, Field: name, Reason: err.Error()}
		}
		st.values[name] = v
	}
	return st, nil
}

// DecodeUpdate turns a JSON object into an Update with typed values, for
// callers that receive initial input over the wire.
func (s *Schema) DecodeUpdate(raw json.RawMessage) (Update, error) {
	u := Update{}
	if len(raw) == 0 {
		return u, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", s.name, err)
	}
	for name, fraw := range fields {
		f, ok := s.index[name]
		if !ok {
			return nil, &SchemaViolationError{Schema: s.name, Field: name, Reason: "field is not declared"}
		}
		v, err := f.decode(fraw)
		if err != nil {
			return nil, &SchemaViolationError{Schema: s.name, Field: name, Reason: err.Error()}
		}
		u[name] = v
	}
	return u, nil
}

// stateFrom builds a state from raw values, filling defaults for missing fields.
func (s *Schema) stateFrom(values map[string]any) State {
	st := s.Defaults()
	for k, v := range values {
		if s.Has(k) {
			st.values[k] = v
		}
	}
	return st
}
