// Package value implements the structured document type used to serialize
// game state, turns and network messages.
package value

import (
	"sort"
	"strings"
)

// Kind is the tag of a Value. It never changes after construction.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindList
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a single document node. Object keys are folded to lowercase on
// both write and read, so "Name" and "name" address the same attribute.
type Value struct {
	kind    Kind
	object  map[string]*Value
	list    []*Value
	str     string
	integer int64
	float   float64
	isFloat bool
	boolean bool
}

// Marshaler is implemented by domain types that can be converted to a Value.
type Marshaler interface {
	ToValue() *Value
}

func NewObject() *Value {
	return &Value{kind: KindObject, object: make(map[string]*Value)}
}

func NewList(items ...*Value) *Value {
	l := &Value{kind: KindList, list: make([]*Value, 0, len(items))}
	for _, item := range items {
		l.list = append(l.list, orNull(item))
	}
	return l
}

func String(s string) *Value {
	return &Value{kind: KindString, str: s}
}

// Int creates a Number that serializes as an integer literal.
func Int(i int) *Value {
	return Int64(int64(i))
}

func Int64(i int64) *Value {
	return &Value{kind: KindNumber, integer: i, float: float64(i)}
}

// Float creates a Number that serializes as a decimal literal.
func Float(f float64) *Value {
	return &Value{kind: KindNumber, integer: int64(f), float: f, isFloat: true}
}

func Bool(b bool) *Value {
	return &Value{kind: KindBool, boolean: b}
}

func Null() *Value {
	return &Value{kind: KindNull}
}

// Strings creates a List of String values.
func Strings(items []string) *Value {
	l := NewList()
	for _, s := range items {
		l.Append(String(s))
	}
	return l
}

// Of converts a domain type to a Value, mapping nil to Null.
func Of(m Marshaler) *Value {
	if m == nil {
		return Null()
	}
	return orNull(m.ToValue())
}

func orNull(v *Value) *Value {
	if v == nil {
		return Null()
	}
	return v
}

func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

func (v *Value) IsNull() bool {
	return v.Kind() == KindNull
}

// IsFloat reports whether a Number was produced from a decimal literal.
func (v *Value) IsFloat() bool {
	return v.Kind() == KindNumber && v.isFloat
}

// Set stores an attribute on an Object and returns the Object for chaining.
// Calling Set on any other kind panics.
func (v *Value) Set(key string, item *Value) *Value {
	v.mustBe(KindObject)
	v.object[strings.ToLower(key)] = orNull(item)
	return v
}

// Get returns the attribute stored under key, or nil if the Value is not an
// Object or the attribute is absent.
func (v *Value) Get(key string) *Value {
	if v.Kind() != KindObject {
		return nil
	}
	return v.object[strings.ToLower(key)]
}

func (v *Value) Has(key string) bool {
	return v.Get(key) != nil
}

func (v *Value) Delete(key string) {
	v.mustBe(KindObject)
	delete(v.object, strings.ToLower(key))
}

// Keys returns the attribute names of an Object in sorted order.
func (v *Value) Keys() []string {
	if v.Kind() != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.object))
	for k := range v.object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of attributes of an Object or items of a List.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindObject:
		return len(v.object)
	case KindList:
		return len(v.list)
	default:
		return 0
	}
}

// Append adds items to a List and returns the List for chaining.
func (v *Value) Append(items ...*Value) *Value {
	v.mustBe(KindList)
	for _, item := range items {
		v.list = append(v.list, orNull(item))
	}
	return v
}

// Items returns a copy of the items of a List.
func (v *Value) Items() []*Value {
	if v.Kind() != KindList {
		return nil
	}
	items := make([]*Value, len(v.list))
	copy(items, v.list)
	return items
}

// At returns the i-th item of a List, or nil when out of range.
func (v *Value) At(i int) *Value {
	if v.Kind() != KindList || i < 0 || i >= len(v.list) {
		return nil
	}
	return v.list[i]
}

// Clone returns a deep copy.
func (v *Value) Clone() *Value {
	if v == nil {
		return Null()
	}
	c := *v
	switch v.kind {
	case KindObject:
		c.object = make(map[string]*Value, len(v.object))
		for k, item := range v.object {
			c.object[k] = item.Clone()
		}
	case KindList:
		c.list = make([]*Value, len(v.list))
		for i, item := range v.list {
			c.list[i] = item.Clone()
		}
	}
	return &c
}

func (v *Value) String() string {
	return Serialize(v)
}

func (v *Value) mustBe(kind Kind) {
	if v.Kind() != kind {
		panic(&TypeMismatchError{Want: kind, Got: v.Kind()})
	}
}
