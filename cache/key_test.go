package cache

import "testing"

func TestKey_CanonicalIsStructural(t *testing.T) {
	a := Key{
		Turns:       []Turn{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
		Model:       "claude-sonnet",
		Temperature: 1,
		MaxTokens:   1024,
	}
	b := Key{
		Turns:       []Turn{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
		Model:       "claude-sonnet",
		Temperature: 1,
		MaxTokens:   1024,
	}
	if a.canonical() != b.canonical() {
		t.Fatal("Expected structurally equal keys to share a canonical encoding")
	}
}

func TestKey_FieldBoundariesAreUnambiguous(t *testing.T) {
	// Same concatenated bytes, different field split. Without length prefixes
	// these would encode identically.
	a := Key{Turns: []Turn{{Role: "a", Content: "bc"}}, Model: "m"}
	b := Key{Turns: []Turn{{Role: "ab", Content: "c"}}, Model: "m"}
	if a.canonical() == b.canonical() {
		t.Fatal("Expected different turn splits to encode differently")
	}

	// A turn's content must not be confusable with a following turn.
	c := Key{Turns: []Turn{{Role: "user", Content: "x"}, {Role: "user", Content: "y"}}}
	d := Key{Turns: []Turn{{Role: "user", Content: "x|r=4:user|c=1:y"}}}
	if c.canonical() == d.canonical() {
		t.Fatal("Expected embedded separator bytes to not forge a turn boundary")
	}
}

func TestKey_ParametersDistinguish(t *testing.T) {
	base := Key{Turns: []Turn{{Role: "user", Content: "hi"}}, Model: "m", Temperature: 0.5, MaxTokens: 100}

	model := base
	model.Model = "m2"
	temp := base
	temp.Temperature = 0.6
	tokens := base
	tokens.MaxTokens = 200

	for name, k := range map[string]Key{"model": model, "temperature": temp, "max tokens": tokens} {
		if k.canonical() == base.canonical() {
			t.Errorf("Expected differing %s to produce a different key", name)
		}
	}
}

func TestKey_TurnOrderMatters(t *testing.T) {
	a := Key{Turns: []Turn{{Role: "user", Content: "one"}, {Role: "assistant", Content: "two"}}}
	b := Key{Turns: []Turn{{Role: "assistant", Content: "two"}, {Role: "user", Content: "one"}}}
	if a.canonical() == b.canonical() {
		t.Fatal("Expected turn order to be part of the key")
	}
}

func TestKey_Fingerprint(t *testing.T) {
	k := testKey("fingerprint me")
	fp := k.Fingerprint()
	if len(fp) != 16 {
		t.Fatalf("Expected 16 hex chars, got %d (%q)", len(fp), fp)
	}
	if fp != k.Fingerprint() {
		t.Fatal("Expected fingerprint to be deterministic")
	}
	if fp == testKey("different").Fingerprint() {
		t.Fatal("Expected different keys to have different fingerprints")
	}
}
