package optimistic

import (
	"reflect"
	"testing"
)

func TestParseClassAction(t *testing.T) {
	tests := []struct {
		input     string
		wantClass string
		wantOp    Op
		wantOK    bool
	}{
		{"btn-success:add", "btn-success", OpAdd, true},
		{"btn-danger:remove", "btn-danger", OpRemove, true},
		{"active:toggle", "active", OpToggle, true},
		{"active:set", "active", OpSet, true},
		{"active:explode", "", "", false},
		{"noaction", "", "", false},
		{":add", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			class, op, ok := ParseClassAction(tt.input)
			if class != tt.wantClass || op != tt.wantOp || ok != tt.wantOK {
				t.Errorf("ParseClassAction(%q) = %q, %q, %v; want %q, %q, %v",
					tt.input, class, op, ok, tt.wantClass, tt.wantOp, tt.wantOK)
			}
		})
	}
}

func TestParseAttrAction(t *testing.T) {
	name, value, ok := ParseAttrAction("data-active:1")
	if !ok || name != "data-active" || value != "1" {
		t.Errorf("ParseAttrAction() = %q, %q, %v", name, value, ok)
	}
	if _, _, ok := ParseAttrAction("broken"); ok {
		t.Error("ParseAttrAction(broken) ok = true")
	}
}

func TestDiff(t *testing.T) {
	prev := []Element{{
		Target:  "#b",
		Classes: []string{"btn-outline-secondary"},
		Attrs:   map[string]string{"data-active": "0"},
	}}
	next := []Element{{
		Target:  "#b",
		Classes: []string{"btn-primary"},
		Attrs:   map[string]string{"data-active": "1"},
	}}

	got := Diff(prev, next)
	want := []Patch{
		{Target: "#b", Class: "btn-outline-secondary:remove"},
		{Target: "#b", Class: "btn-primary:add"},
		{Target: "#b", Attr: "data-active:1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %+v, want %+v", got, want)
	}

	if patches := Diff(next, next); len(patches) != 0 {
		t.Errorf("Diff(same) = %+v, want none", patches)
	}
}

func TestApplyInvertsDiff(t *testing.T) {
	style := Style{On: "btn-success", Off: "btn-outline-secondary"}
	prev := []Element{
		{Target: "yay", Classes: style.Classes(false)},
		{Target: "nay", Classes: []string{"btn-danger"}},
	}
	next := []Element{
		{Target: "yay", Classes: style.Classes(true)},
		{Target: "nay", Classes: []string{"btn-outline-secondary"}},
	}

	got := Apply(prev, Diff(prev, next))
	if !reflect.DeepEqual(got, next) {
		t.Errorf("Apply(Diff()) = %+v, want %+v", got, next)
	}
	// prev is untouched.
	if !prev[1].HasClass("btn-danger") {
		t.Error("Apply() mutated its input")
	}
}

func TestStyled(t *testing.T) {
	style := Style{On: "btn-primary", Off: "btn-outline-secondary"}
	tests := []struct {
		classes []string
		wantOn  bool
		wantOK  bool
	}{
		{[]string{"btn", "btn-primary"}, true, true},
		{[]string{"btn", "btn-outline-secondary"}, false, true},
		{[]string{"btn-primary", "btn-outline-secondary"}, false, false},
		{[]string{"btn"}, false, false},
	}
	for _, tt := range tests {
		on, ok := style.Styled(Element{Classes: tt.classes})
		if on != tt.wantOn || ok != tt.wantOK {
			t.Errorf("Styled(%v) = %v, %v; want %v, %v", tt.classes, on, ok, tt.wantOn, tt.wantOK)
		}
	}
}

func TestApplyEmptyAttrRemoves(t *testing.T) {
	els := []Element{{Target: "#b", Attrs: map[string]string{"title": "Planned", "data-active": "1"}}}

	got := Apply(els, []Patch{AttrPatch("#b", "title", ""), {Target: "#b", Text: "sub ✓"}})
	if _, ok := got[0].Attrs["title"]; ok {
		t.Errorf("title still present: %v", got[0].Attrs)
	}
	if got[0].Attrs["data-active"] != "1" || got[0].Text != "sub ✓" {
		t.Errorf("Apply() = %+v", got[0])
	}
}
