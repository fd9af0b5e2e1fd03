// Package input turns line-oriented stdin into typed call arguments and
// renders values in the canonical compact text form shared by drivers and
// the result normalizer.
package input

import "sort"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable argument value. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	items  []Value
	fields []Field
}

// Field is one key of an object value.
type Field struct {
	Key   string
	Value Value
}

func Null() Value               { return Value{} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Int(i int64) Value         { return Value{kind: KindInt, i: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f: f} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, items: append([]Value(nil), items...)} }

// Object builds an object value; keys are kept sorted and a repeated key keeps
// its last value.
func Object(fields ...Field) Value {
	byKey := make(map[string]Value, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f.Value
	}
	out := make([]Field, 0, len(byKey))
	for k, v := range byKey {
		out = append(out, Field{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return Value{kind: KindObject, fields: out}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) AsBool() bool        { return v.b }
func (v Value) AsInt() int64        { return v.i }
func (v Value) AsFloat() float64    { return v.f }
func (v Value) AsString() string    { return v.s }
func (v Value) Len() int            { return len(v.items) + len(v.fields) }
func (v Value) Index(i int) Value   { return v.items[i] }
func (v Value) FieldAt(i int) Field { return v.fields[i] }

// Items returns a copy of the list elements.
func (v Value) Items() []Value {
	return append([]Value(nil), v.items...)
}

// Fields returns a copy of the object fields in key order.
func (v Value) Fields() []Field {
	return append([]Field(nil), v.fields...)
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	return Serialize(v) == Serialize(o)
}
