package jsonld

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/titanous/json5"
)

// ErrNoStructuredData reports a document without a qualifying JSON-LD block.
var ErrNoStructuredData = errors.New("jsonld: no structured data")

// PropertyTypes are the schema.org types recognized as property descriptors.
var PropertyTypes = map[string]bool{
	"House":                 true,
	"Apartment":             true,
	"SingleFamilyResidence": true,
	"Place":                 true,
	"Accommodation":         true,
	"Offer":                 true,
	"Residence":             true,
}

// Parse decodes a JSON-LD script body. Strict JSON is tried first; on failure
// the text is re-read as JSON5, which tolerates the trailing commas, comments
// and single quotes common in hand-built listing pages.
func Parse(text string) (Node, error) {
	text = cleanScript(text)
	if text == "" {
		return Absent, eris.New("jsonld: empty block")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	strictErr := dec.Decode(&v)
	if strictErr == nil {
		return FromValue(v), nil
	}

	var lenient any
	if err := json5.Unmarshal([]byte(text), &lenient); err != nil {
		return Absent, eris.Wrap(strictErr, "jsonld: parse block")
	}
	return FromValue(lenient), nil
}

// cleanScript strips whitespace, CDATA/HTML comment wrappers and a trailing
// semicolon from a script body.
func cleanScript(text string) string {
	text = strings.TrimSpace(text)
	for _, w := range [][2]string{{"<![CDATA[", "]]>"}, {"<!--", "-->"}, {"//<![CDATA[", "//]]>"}} {
		if strings.HasPrefix(text, w[0]) && strings.HasSuffix(text, w[1]) {
			text = strings.TrimSpace(text[len(w[0]) : len(text)-len(w[1])])
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(text, ";"))
}

// IsPropertyType reports whether an object node declares a recognized type,
// either as a single value or as any entry of a type list.
func IsPropertyType(n Node) bool {
	if !n.IsObject() {
		return false
	}
	for _, t := range n.Types() {
		if PropertyTypes[t] {
			return true
		}
	}
	return false
}

// SelectProperty picks the property descriptor from a parsed block. For a
// list, or an object carrying an @graph list, the first recognized sub-object
// wins; otherwise the outer object itself is evaluated.
func SelectProperty(root Node) (Node, bool) {
	if root.IsList() {
		for _, item := range root.Items() {
			if IsPropertyType(item) {
				return item, true
			}
		}
		return Absent, false
	}
	if !root.IsObject() {
		return Absent, false
	}
	for _, item := range root.Get("@graph").Items() {
		if IsPropertyType(item) {
			return item, true
		}
	}
	if IsPropertyType(root) {
		return root, true
	}
	return Absent, false
}
