package models

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"user":      RoleUser,
		" USER ":    RoleUser,
		"assistant": RoleAssistant,
		"model":     RoleAssistant,
		"system":    RoleSystem,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseRole("tool"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if Role("tool").Valid() {
		t.Fatalf("unexpected valid role")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeLocal {
		t.Fatalf("empty mode: got %q, %v", m, err)
	}
	if m, err := ParseMode("Remote"); err != nil || m != ModeRemote {
		t.Fatalf("remote mode: got %q, %v", m, err)
	}
	if _, err := ParseMode("hybrid"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
