package router

import "testing"

func TestGlobLaws(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"/a/b", "/a/*", true},
		{"/a/b/c", "/a/*", false},
		{"/a/b/c", "/a/**", true},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.path); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestFirstInsertedGlobWins(t *testing.T) {
	tbl := New()
	first := tbl.Register("GET", "/a/*", Base, "first", "")
	tbl.Register("GET", "/a/*", Base, "second", "")
	got := tbl.Match("GET", "/a/b")
	if got != first {
		t.Fatalf("expected earliest-registered hook to win")
	}
}

func TestExactBeatsNothingElse(t *testing.T) {
	tbl := New()
	tbl.Register("GET", "/x", Base, "exact", "")
	tbl.Register("GET", "/*", Base, "glob", "")
	got := tbl.Match("GET", "/x")
	if got == nil || got.Handler != "exact" {
		t.Fatalf("expected exact match")
	}
}

func TestTrailingSlashIgnored(t *testing.T) {
	tbl := New()
	tbl.Register("GET", "/x", Base, "exact", "")
	if tbl.Match("GET", "/x/") == nil {
		t.Fatal("expected trailing slash to be ignored")
	}
}

func TestMethodMismatch(t *testing.T) {
	tbl := New()
	tbl.Register("POST", "/x", Base, "h", "")
	if tbl.Match("GET", "/x") != nil {
		t.Fatal("expected no match for wrong method")
	}
}

func TestNotFoundHook(t *testing.T) {
	tbl := New()
	if tbl.NotFound() != nil {
		t.Fatal("expected nil before registration")
	}
	tbl.RegisterNotFound("h404", Base)
	if tbl.NotFound() == nil {
		t.Fatal("expected 404 hook to be registered")
	}
}
