// Package jsonld models schema.org JSON-LD trees as tagged variants with
// type-checked accessors, and selects property descriptors from them.
package jsonld

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the variant tag of a Node.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindObject
	KindList
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
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
		return "bool"
	default:
		return "unknown"
	}
}

// Node is one value in a decoded JSON-LD tree. The zero Node is absent.
type Node struct {
	kind Kind
	obj  map[string]any
	list []any
	str  string
	num  float64
	b    bool
}

// Absent is the node returned for missing keys and out-of-range lookups.
var Absent = Node{}

// FromValue wraps a value produced by encoding/json (with or without
// UseNumber) or json5.
func FromValue(v any) Node {
	switch t := v.(type) {
	case nil:
		return Node{kind: KindNull}
	case map[string]any:
		return Node{kind: KindObject, obj: t}
	case []any:
		return Node{kind: KindList, list: t}
	case string:
		return Node{kind: KindString, str: t}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Node{kind: KindString, str: t.String()}
		}
		return Node{kind: KindNumber, num: f}
	case float64:
		return Node{kind: KindNumber, num: t}
	case int:
		return Node{kind: KindNumber, num: float64(t)}
	case int64:
		return Node{kind: KindNumber, num: float64(t)}
	case bool:
		return Node{kind: KindBool, b: t}
	default:
		return Absent
	}
}

// Kind returns the variant tag.
func (n Node) Kind() Kind { return n.kind }

// IsAbsent reports whether the node is missing.
func (n Node) IsAbsent() bool { return n.kind == KindAbsent }

// IsObject reports whether the node is an object.
func (n Node) IsObject() bool { return n.kind == KindObject }

// IsList reports whether the node is a list.
func (n Node) IsList() bool { return n.kind == KindList }

// Get returns the member named key of an object node, or Absent.
func (n Node) Get(key string) Node {
	if n.kind != KindObject {
		return Absent
	}
	v, ok := n.obj[key]
	if !ok {
		return Absent
	}
	return FromValue(v)
}

// First returns the first non-absent member among keys.
func (n Node) First(keys ...string) Node {
	for _, k := range keys {
		if v := n.Get(k); !v.IsAbsent() && v.kind != KindNull {
			return v
		}
	}
	return Absent
}

// Items returns the elements of a list node, or nil for other kinds.
func (n Node) Items() []Node {
	if n.kind != KindList {
		return nil
	}
	out := make([]Node, len(n.list))
	for i, v := range n.list {
		out[i] = FromValue(v)
	}
	return out
}

// Len returns the number of elements of a list or members of an object.
func (n Node) Len() int {
	switch n.kind {
	case KindList:
		return len(n.list)
	case KindObject:
		return len(n.obj)
	default:
		return 0
	}
}

// Str returns the string value of a string node.
func (n Node) Str() (string, bool) {
	if n.kind != KindString {
		return "", false
	}
	return n.str, true
}

// Text renders a scalar node as text: strings as-is, numbers in shortest
// form. Other kinds yield "".
func (n Node) Text() string {
	switch n.kind {
	case KindString:
		return n.str
	case KindNumber:
		return strconv.FormatFloat(n.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Number coerces the node to a number. Numeric literals are accepted, as are
// numeral strings once thousands separators, currency signs and whitespace
// are stripped. Booleans, NaN and infinities are not numbers.
func (n Node) Number() (float64, bool) {
	switch n.kind {
	case KindNumber:
		return n.num, finite(n.num)
	case KindString:
		return parseNumeral(n.str)
	default:
		return 0, false
	}
}

var numeralReplacer = strings.NewReplacer(",", "", "$", "", " ", "", " ", "")

func parseNumeral(s string) (float64, bool) {
	s = numeralReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Truthy mirrors JSON truthiness: absent, null, false, 0, "" and empty
// containers are false.
func (n Node) Truthy() bool {
	switch n.kind {
	case KindString:
		return n.str != ""
	case KindNumber:
		return n.num != 0
	case KindBool:
		return n.b
	case KindObject:
		return len(n.obj) > 0
	case KindList:
		return len(n.list) > 0
	default:
		return false
	}
}

// Types returns the declared @type values: a single string or every string
// entry of a list.
func (n Node) Types() []string {
	t := n.Get("@type")
	if s, ok := t.Str(); ok {
		return []string{s}
	}
	var out []string
	for _, item := range t.Items() {
		if s, ok := item.Str(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Value returns the underlying decoded value.
func (n Node) Value() any {
	switch n.kind {
	case KindObject:
		return n.obj
	case KindList:
		return n.list
	case KindString:
		return n.str
	case KindNumber:
		return n.num
	case KindBool:
		return n.b
	default:
		return nil
	}
}

// MarshalJSON encodes the underlying value; absent nodes encode as null.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value())
}
