package patch

import (
	"strings"
	"testing"
)

func TestTagInteriorExactSubstitution(t *testing.T) {
	content := `<div className="hero"><h1>Welcome</h1></div>`
	got, ok := replaceTagInterior(content, "Welcome", "Hi")
	if !ok {
		t.Fatalf("replaceTagInterior missed")
	}
	want := `<div className="hero"><h1>Hi</h1></div>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTagInteriorPreservesWhitespace(t *testing.T) {
	content := "<p>\n    Welcome\n  </p>"
	got, ok := replaceTagInterior(content, "Welcome", "Hi")
	if !ok {
		t.Fatalf("replaceTagInterior missed")
	}
	want := "<p>\n    Hi\n  </p>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestQuotedLiteral(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{`<img alt="Welcome" />`, `<img alt="Hi" />`},
		{`const label = 'Welcome';`, `const label = 'Hi';`},
		{"const label = `Welcome`;", "const label = `Hi`;"},
	}
	for _, tc := range cases {
		got, ok := replaceQuotedLiteral(tc.content, "Welcome", "Hi")
		if !ok {
			t.Fatalf("replaceQuotedLiteral missed on %q", tc.content)
		}
		if got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestTagPair(t *testing.T) {
	content := `<Button variant="primary">Welcome</Button>`
	got, ok := replaceTagPair(content, "Welcome", "Hi")
	if !ok {
		t.Fatalf("replaceTagPair missed")
	}
	want := `<Button variant="primary">Hi</Button>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTemplateLiteralRequiresInterpolation(t *testing.T) {
	plain := "const s = `Welcome home`;"
	if _, ok := replaceTemplateLiteral(plain, "Welcome", "Hi"); ok {
		t.Fatalf("matched a template literal without interpolation")
	}

	interp := "const s = `Welcome ${user.name}`;"
	got, ok := replaceTemplateLiteral(interp, "Welcome", "Hi")
	if !ok {
		t.Fatalf("replaceTemplateLiteral missed")
	}
	if got != "const s = `Hi ${user.name}`;" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizedLineToleratesCollapsedSpaces(t *testing.T) {
	content := "  <span>Welcome   to    the app</span>"
	got, ok := replaceNormalizedLine(content, "Welcome to the app", "Hello there")
	if !ok {
		t.Fatalf("replaceNormalizedLine missed")
	}
	if !strings.Contains(got, "Hello there") {
		t.Fatalf("replacement absent: %q", got)
	}
	if strings.Contains(got, "Welcome") {
		t.Fatalf("original text survived: %q", got)
	}
}

func TestWordBoundaryAvoidsPartialWords(t *testing.T) {
	content := "Welcomed guests. Welcome!"
	got, ok := replaceWordBoundary(content, "Welcome", "Hi")
	if !ok {
		t.Fatalf("replaceWordBoundary missed")
	}
	if got != "Welcomed guests. Hi!" {
		t.Fatalf("got %q", got)
	}
}

func TestWordBoundaryRawFallback(t *testing.T) {
	content := "prefix-Welcome-suffix"
	got, ok := replaceWordBoundary(content, "-Welcome-", "-Hi-")
	if !ok {
		t.Fatalf("raw fallback missed")
	}
	if got != "prefix-Hi-suffix" {
		t.Fatalf("got %q", got)
	}
}
