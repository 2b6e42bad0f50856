package patch

import (
	"regexp"
	"strings"
)

// A Strategy tries to substitute original with replacement inside content.
// Strategies are pure: on a miss they return ("", false) and the caller's
// content is untouched.
type Strategy func(content, original, replacement string) (string, bool)

// Strategies returns the fallback chain in priority order. The first strategy
// that matches wins.
func Strategies() []Strategy {
	return []Strategy{
		replaceTagInterior,
		replaceQuotedLiteral,
		replaceTagPair,
		replaceTemplateLiteral,
		replaceNormalizedLine,
		replaceWordBoundary,
	}
}

// replaceTagInterior handles the common case of plain text content between a
// closing '>' and an opening '<', optionally across newlines and indentation.
// Surrounding whitespace is preserved; only the text itself is substituted.
func replaceTagInterior(content, original, replacement string) (string, bool) {
	re, err := regexp.Compile(`>([ \t\r\n]*)` + regexp.QuoteMeta(original) + `([ \t\r\n]*)<`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", false
	}
	ws1 := content[loc[2]:loc[3]]
	ws2 := content[loc[4]:loc[5]]
	return content[:loc[0]] + ">" + ws1 + replacement + ws2 + "<" + content[loc[1]:], true
}

// replaceQuotedLiteral matches the original verbatim inside single, double, or
// back-tick quotes (attribute values and string constants).
func replaceQuotedLiteral(content, original, replacement string) (string, bool) {
	for _, q := range []string{`"`, `'`, "`"} {
		old := q + original + q
		if strings.Contains(content, old) {
			return strings.Replace(content, old, q+replacement+q, 1), true
		}
	}
	return "", false
}

// replaceTagPair matches the original between a full opening tag and a full
// closing tag. This resolves nested component tags where the bare '>'/'<'
// boundary of replaceTagInterior is ambiguous.
func replaceTagPair(content, original, replacement string) (string, bool) {
	re, err := regexp.Compile(
		`(<[A-Za-z][^<>]*>[ \t\r\n]*)` + regexp.QuoteMeta(original) + `([ \t\r\n]*</[A-Za-z][^<>]*>)`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", false
	}
	opening := content[loc[2]:loc[3]]
	closing := content[loc[4]:loc[5]]
	return content[:loc[0]] + opening + replacement + closing + content[loc[1]:], true
}

// replaceTemplateLiteral matches the original inside a back-tick template
// literal that also contains interpolation markers.
func replaceTemplateLiteral(content, original, replacement string) (string, bool) {
	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] != '`' {
			continue
		}
		if start == -1 {
			start = i
			continue
		}
		lit := content[start+1 : i]
		if strings.Contains(lit, "${") && strings.Contains(lit, original) {
			patched := strings.Replace(lit, original, replacement, 1)
			return content[:start+1] + patched + content[i:], true
		}
		start = -1
	}
	return "", false
}

var spaceRun = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// replaceNormalizedLine collapses whitespace in both the target and each
// candidate line; when a normalized line contains the normalized target, the
// original line is rewritten with a whitespace-tolerant pattern.
func replaceNormalizedLine(content, original, replacement string) (string, bool) {
	normTarget := normalizeSpace(original)
	if normTarget == "" {
		return "", false
	}
	tokens := strings.Fields(original)
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	tolerant, err := regexp.Compile(strings.Join(quoted, `[ \t]+`))
	if err != nil {
		return "", false
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !strings.Contains(normalizeSpace(line), normTarget) {
			continue
		}
		loc := tolerant.FindStringIndex(line)
		if loc == nil {
			continue
		}
		lines[i] = line[:loc[0]] + replacement + line[loc[1]:]
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

// replaceWordBoundary prefers a word-boundary-respecting match and falls back
// to a raw first-occurrence substring replace.
func replaceWordBoundary(content, original, replacement string) (string, bool) {
	if original == "" {
		return "", false
	}
	if isWordChar(original[0]) && isWordChar(original[len(original)-1]) {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(original) + `\b`)
		if err == nil {
			if loc := re.FindStringIndex(content); loc != nil {
				return content[:loc[0]] + replacement + content[loc[1]:], true
			}
		}
	}
	if idx := strings.Index(content, original); idx >= 0 {
		return content[:idx] + replacement + content[idx+len(original):], true
	}
	return "", false
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
