package preview

import "testing"

func TestParseInboundReadyMessages(t *testing.T) {
	for _, raw := range []string{
		`{"type":"VISUAL_EDIT_READY"}`,
		`{"type":"HOT_RELOAD_READY"}`,
	} {
		in, err := ParseInbound([]byte(raw))
		if err != nil {
			t.Fatalf("ParseInbound(%s) error = %v", raw, err)
		}
		if in.Selected != nil || in.TextUpdate != nil {
			t.Fatalf("ready message carried a payload: %+v", in)
		}
	}
}

func TestParseInboundSelect(t *testing.T) {
	raw := `{"type":"VISUAL_EDIT_SELECT","payload":{"filePath":"src/App.tsx","tagName":"H1","textContent":"Welcome","originalText":"Welcome","lineNumber":3,"columnNumber":7}}`
	in, err := ParseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if in.Selected == nil {
		t.Fatalf("Selected is nil")
	}
	if in.Selected.FilePath != "src/App.tsx" || in.Selected.TagName != "H1" || in.Selected.LineNumber != 3 {
		t.Fatalf("Selected = %+v", in.Selected)
	}
}

func TestParseInboundTextUpdate(t *testing.T) {
	raw := `{"type":"VISUAL_EDIT_TEXT_UPDATE","payload":{"filePath":"src/App.tsx","textContent":"Hi","originalText":"Welcome"}}`
	in, err := ParseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if in.TextUpdate == nil || in.TextUpdate.OriginalText != "Welcome" || in.TextUpdate.TextContent != "Hi" {
		t.Fatalf("TextUpdate = %+v", in.TextUpdate)
	}
}

func TestParseInboundRejectsBadMessages(t *testing.T) {
	for _, raw := range []string{
		`{"type":"UNKNOWN_TYPE"}`,
		`{"type":"VISUAL_EDIT_SELECT","payload":{"tagName":"H1"}}`,
		`{"type":"VISUAL_EDIT_TEXT_UPDATE","payload":{"filePath":"a"}}`,
		`not json`,
	} {
		if _, err := ParseInbound([]byte(raw)); err == nil {
			t.Fatalf("ParseInbound(%s) succeeded, want error", raw)
		}
	}
}
