package convkey

import (
	"errors"
	"testing"
)

func TestResolveSymmetry(t *testing.T) {
	k1, err := Resolve("gp1", "pacc1", "projX")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	k2, err := Resolve("pacc1", "gp1", "projX")
	if err != nil {
		t.Fatalf("resolve reversed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("keys differ by argument order: %s vs %s", k1, k2)
	}
}

func TestResolveDistinctProjects(t *testing.T) {
	k1, _ := Resolve("gp1", "pacc1", "projX")
	k2, _ := Resolve("gp1", "pacc1", "projY")
	if k1 == k2 {
		t.Fatalf("different projects resolved to same key %s", k1)
	}
}

func TestResolveRejectsSelf(t *testing.T) {
	if _, err := Resolve("gp1", "gp1", "projX"); !errors.Is(err, ErrInvalidParticipants) {
		t.Fatalf("expected ErrInvalidParticipants, got %v", err)
	}
}

func TestResolveRejectsEmpty(t *testing.T) {
	cases := [][3]string{
		{"", "pacc1", "projX"},
		{"gp1", "", "projX"},
		{"gp1", "pacc1", ""},
	}
	for _, c := range cases {
		if _, err := Resolve(c[0], c[1], c[2]); !errors.Is(err, ErrInvalidParticipants) {
			t.Fatalf("Resolve(%q,%q,%q): expected ErrInvalidParticipants, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestResolveRejectsColonInIDs(t *testing.T) {
	if _, err := Resolve("gp:1", "pacc1", "projX"); !errors.Is(err, ErrInvalidParticipants) {
		t.Fatalf("expected ErrInvalidParticipants, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	key, _ := Resolve("pacc1", "gp1", "projX")
	a, b, p, err := Parse(key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != "gp1" || b != "pacc1" || p != "projX" {
		t.Fatalf("parse returned %s %s %s", a, b, p)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "conv:a:b", "dm:a:b:p", "conv:a::p"} {
		if _, _, _, err := Parse(key); err == nil {
			t.Fatalf("Parse(%q): expected error", key)
		}
	}
}

func TestOther(t *testing.T) {
	key, _ := Resolve("gp1", "pacc1", "projX")
	other, err := Other(key, "gp1")
	if err != nil || other != "pacc1" {
		t.Fatalf("Other(gp1) = %s, %v", other, err)
	}
	if _, err := Other(key, "stranger"); err == nil {
		t.Fatal("expected error for non-participant")
	}
}

func TestIsParticipant(t *testing.T) {
	key, _ := Resolve("gp1", "pacc1", "projX")
	if !IsParticipant(key, "gp1") || !IsParticipant(key, "pacc1") {
		t.Fatal("participants not recognized")
	}
	if IsParticipant(key, "gp2") || IsParticipant("garbage", "gp1") {
		t.Fatal("non-participant accepted")
	}
}
