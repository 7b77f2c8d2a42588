package optimistic

import (
	"fmt"
	"sort"
	"strings"
)

// Op is the kind of change a Patch applies to an element.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpSet    Op = "set"
	OpToggle Op = "toggle"
)

// Patch is one change to one element, as sent to a thin client.
//
// Class patches are encoded "classname:action" (e.g. "btn-success:add"),
// attribute patches "name:value" (e.g. "data-active:1").
type Patch struct {
	Target string `json:"target"`
	Class  string `json:"class,omitempty"`
	Attr   string `json:"attr,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ClassPatch builds a class patch.
func ClassPatch(target, class string, op Op) Patch {
	return Patch{Target: target, Class: fmt.Sprintf("%s:%s", class, op)}
}

// AttrPatch builds an attribute patch.
func AttrPatch(target, name, value string) Patch {
	return Patch{Target: target, Attr: fmt.Sprintf("%s:%s", name, value)}
}

// Diff returns the patches that turn prev into next. Elements are matched by
// Target; elements only present in next are emitted in full.
func Diff(prev, next []Element) []Patch {
	before := make(map[string]Element, len(prev))
	for _, el := range prev {
		before[el.Target] = el
	}

	var patches []Patch
	for _, el := range next {
		old := before[el.Target]
		for _, class := range old.Classes {
			if !el.HasClass(class) {
				patches = append(patches, ClassPatch(el.Target, class, OpRemove))
			}
		}
		for _, class := range el.Classes {
			if !old.HasClass(class) {
				patches = append(patches, ClassPatch(el.Target, class, OpAdd))
			}
		}
		names := make([]string, 0, len(el.Attrs))
		for name := range el.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			value := el.Attrs[name]
			if prevValue, ok := old.Attrs[name]; ok && prevValue == value {
				continue
			}
			patches = append(patches, AttrPatch(el.Target, name, value))
		}
		if el.Text != "" && el.Text != old.Text {
			patches = append(patches, Patch{Target: el.Target, Text: el.Text})
		}
	}
	return patches
}

// Apply applies patches to elements and returns the result. It is the
// inverse of Diff and is what a thin client does with incoming patches.
func Apply(elements []Element, patches []Patch) []Element {
	out := make([]Element, 0, len(elements))
	index := make(map[string]int, len(elements))
	for _, el := range elements {
		cp := Element{Target: el.Target, Classes: append([]string(nil), el.Classes...), Text: el.Text}
		if el.Attrs != nil {
			cp.Attrs = make(map[string]string, len(el.Attrs))
			for k, v := range el.Attrs {
				cp.Attrs[k] = v
			}
		}
		index[el.Target] = len(out)
		out = append(out, cp)
	}

	for _, p := range patches {
		i, ok := index[p.Target]
		if !ok {
			index[p.Target] = len(out)
			out = append(out, Element{Target: p.Target})
			i = len(out) - 1
		}
		el := &out[i]
		if p.Class != "" {
			class, op, ok := ParseClassAction(p.Class)
			if !ok {
				continue
			}
			has := el.HasClass(class)
			switch {
			case op == OpAdd && !has, op == OpToggle && !has, op == OpSet && !has:
				el.Classes = append(el.Classes, class)
			case op == OpRemove && has, op == OpToggle && has:
				el.Classes = removeClass(el.Classes, class)
			}
		}
		if p.Attr != "" {
			name, value, ok := ParseAttrAction(p.Attr)
			if !ok {
				continue
			}
			if value == "" {
				delete(el.Attrs, name)
				continue
			}
			if el.Attrs == nil {
				el.Attrs = make(map[string]string)
			}
			el.Attrs[name] = value
		}
		if p.Text != "" {
			el.Text = p.Text
		}
	}
	return out
}

func removeClass(classes []string, class string) []string {
	out := classes[:0]
	for _, c := range classes {
		if c != class {
			out = append(out, c)
		}
	}
	return out
}

// ParseClassAction parses a class action string like "btn-success:add".
// Returns the class name, action, and whether parsing succeeded.
func ParseClassAction(value string) (class string, op Op, ok bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	class = parts[0]
	switch Op(parts[1]) {
	case OpAdd, OpRemove, OpToggle, OpSet:
		op = Op(parts[1])
	default:
		return "", "", false
	}
	return class, op, true
}

// ParseAttrAction parses an attribute action string like "data-active:1".
// Returns the attribute name, value, and whether parsing succeeded.
func ParseAttrAction(value string) (name, attrValue string, ok bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
