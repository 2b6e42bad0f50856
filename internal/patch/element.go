package patch

// SelectedElement is a visual-edit target as reported by the embedded preview.
// It is created when the user clicks an element, mutated while the edit panel
// is open, and discarded when the panel closes or another element is picked.
type SelectedElement struct {
	FilePath       string            `json:"filePath"`
	LineNumber     int               `json:"lineNumber"`
	ColumnNumber   int               `json:"columnNumber"`
	TagName        string            `json:"tagName"`
	TextContent    string            `json:"textContent"`
	OriginalText   string            `json:"originalText"`
	ClassName      string            `json:"className,omitempty"`
	InlineStyle    string            `json:"inlineStyle,omitempty"`
	ComputedStyles map[string]string `json:"computedStyles,omitempty"`
}
