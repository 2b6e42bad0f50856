package patch

import (
	"regexp"
	"strings"
)

// Style and class edits are independent of text edits: they rewrite an
// existing attribute region in place, or insert one immediately after the
// opening tag name when the element has no such attribute yet.

// ApplyClass sets the class (or className) attribute of the first occurrence
// of the element's tag in content.
func ApplyClass(content string, el SelectedElement, newClass string) (string, bool) {
	for _, attr := range []string{"className", "class"} {
		if patched, ok := replaceAttr(content, el.TagName, attr, newClass); ok {
			return patched, true
		}
	}
	attr := "class"
	if looksLikeJSX(content) {
		attr = "className"
	}
	return insertAttr(content, el.TagName, attr, newClass)
}

// ApplyStyle sets the inline style attribute of the first occurrence of the
// element's tag in content.
func ApplyStyle(content string, el SelectedElement, newStyle string) (string, bool) {
	if patched, ok := replaceAttr(content, el.TagName, "style", newStyle); ok {
		return patched, true
	}
	return insertAttr(content, el.TagName, "style", newStyle)
}

// replaceAttr rewrites attr="..." (or attr='...' / attr={...}) inside the
// first opening tag for tagName.
func replaceAttr(content, tagName, attr, value string) (string, bool) {
	tagStart, tagEnd, ok := findOpeningTag(content, tagName)
	if !ok {
		return "", false
	}
	tag := content[tagStart:tagEnd]

	// The brace alternative allows one nesting level for JSX style objects.
	re, err := regexp.Compile(regexp.QuoteMeta(attr) + `\s*=\s*("[^"]*"|'[^']*'|\{(?:[^{}]|\{[^{}]*\})*\})`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(tag)
	if loc == nil {
		return "", false
	}
	rewritten := tag[:loc[0]] + attr + `="` + value + `"` + tag[loc[1]:]
	return content[:tagStart] + rewritten + content[tagEnd:], true
}

// insertAttr adds attr="value" immediately after the tag name of the first
// opening tag for tagName.
func insertAttr(content, tagName, attr, value string) (string, bool) {
	tagStart, _, ok := findOpeningTag(content, tagName)
	if !ok {
		return "", false
	}
	insertAt := tagStart + 1 + len(strings.TrimSpace(tagName))
	return content[:insertAt] + " " + attr + `="` + value + `"` + content[insertAt:], true
}

// findOpeningTag locates the first `<tagName ...>` region, matching the tag
// name case-insensitively since the preview reports DOM tag names upper-cased.
func findOpeningTag(content, tagName string) (start, end int, ok bool) {
	tagName = strings.TrimSpace(tagName)
	if tagName == "" {
		return 0, 0, false
	}
	re, err := regexp.Compile(`(?i)<` + regexp.QuoteMeta(tagName) + `(\s[^>]*)?>`)
	if err != nil {
		return 0, 0, false
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

func looksLikeJSX(content string) bool {
	return strings.Contains(content, "className=") ||
		strings.Contains(content, "export default") ||
		strings.Contains(content, "import React")
}
