package rangeset

import (
	"reflect"
	"testing"
)

func TestParseEmptyAndZero(t *testing.T) {
	for _, expr := range []string{"", "0"} {
		s, err := Parse(expr)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", expr, err)
		}
		if s.Active() {
			t.Fatalf("Parse(%q): expected inactive set", expr)
		}
		if s.Contains(1) {
			t.Fatalf("Parse(%q): inactive set must contain nothing", expr)
		}
	}
}

func TestParseMembership(t *testing.T) {
	cases := []struct {
		expr string
		want []int
	}{
		{"5", []int{5}},
		{"1,3,5-7", []int{1, 3, 5, 6, 7}},
		{"7-5", []int{5, 6, 7}},
		{"3,1,1,2-4", []int{1, 2, 3, 4}},
	}
	for _, c := range cases {
		s, err := Parse(c.expr)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", c.expr, err)
		}
		if !s.Active() {
			t.Fatalf("Parse(%q): expected active set", c.expr)
		}
		for _, n := range c.want {
			if !s.Contains(n) {
				t.Errorf("Parse(%q): expected %d to be a member", c.expr, n)
			}
		}
		if s.Len() != len(c.want) {
			t.Errorf("Parse(%q): Len() = %d, want %d", c.expr, s.Len(), len(c.want))
		}
	}
}

func TestParseEquivalence(t *testing.T) {
	a, err := Parse("3,1,1,2-4")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("1,2,3,4")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.members, b.members) {
		t.Fatalf("parse(3,1,1,2-4) != parse(1,2,3,4): %v vs %v", a.members, b.members)
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{"abc", "-5", "5-", "1,,3", "1-2-3", "1-a", "a-1"} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", expr)
		}
	}
}
