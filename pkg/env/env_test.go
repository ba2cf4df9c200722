package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("PACKLIST_TEST_VALUE", "  console ")
	if got := Get("PACKLIST_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("PACKLIST_TEST_VALUE", "   ")
	if got := Get("PACKLIST_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("PACKLIST_TEST_A", "")
	t.Setenv("PACKLIST_TEST_B", "b")
	if got := First("x", "PACKLIST_TEST_A", "PACKLIST_TEST_B"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	t.Setenv("PACKLIST_TEST_A", "a")
	if got := First("x", "PACKLIST_TEST_A", "PACKLIST_TEST_B"); got != "a" {
		t.Fatalf("expected a, got %q", got)
	}
	if got := First("x"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("PACKLIST_TEST_FLAG", "true")
	if !Bool("PACKLIST_TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("PACKLIST_TEST_FLAG", "nope")
	if !Bool("PACKLIST_TEST_FLAG", true) {
		t.Fatal("expected fallback for unparseable value")
	}
}
