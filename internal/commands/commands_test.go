package commands

import (
	"reflect"
	"testing"
)

func TestSplitOptions(t *testing.T) {
	got := splitOptions(" Cats | Dogs |  | Birds ")
	want := []string{"Cats", "Dogs", "Birds"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if got := splitOptions("   "); got != nil {
		t.Fatalf("blank input should yield nothing, got %v", got)
	}

	got = splitOptions("single")
	if len(got) != 1 || got[0] != "single" {
		t.Fatalf("got %v", got)
	}
}

func TestCommandSet_Shape(t *testing.T) {
	cmds := commandSet()

	names := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		if c.Description == "" {
			t.Fatalf("command %q has no description", c.Name)
		}
		if names[c.Name] {
			t.Fatalf("duplicate command %q", c.Name)
		}
		names[c.Name] = true
	}
	for _, want := range []string{"qotd", "closepoll", "megapoll", "metapoll", "game", "club"} {
		if !names[want] {
			t.Fatalf("command %q missing", want)
		}
	}
}
