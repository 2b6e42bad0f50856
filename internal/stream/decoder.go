package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// maxBlockSize bounds a single protocol block. File contents arrive as whole
// blocks, so this has to be generous.
const maxBlockSize = 16 << 20

// Decoder splits a raw generation stream into blank-line-delimited blocks and
// decodes each block independently. A block that does not parse as an object
// is reported as a keepalive rather than an error: keepalive comment lines and
// partial buffer fragments are indistinguishable from malformed data without a
// schema tag, and dropping the stream over them would be worse than skipping.
type Decoder struct {
	sc *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxBlockSize)
	sc.Split(splitBlocks)
	return &Decoder{sc: sc}
}

// Next returns the next decoded event. It returns io.EOF when the stream is
// exhausted and the underlying read error otherwise. Next never fails on
// malformed block content.
func (d *Decoder) Next() (Event, error) {
	if d == nil || d.sc == nil {
		return Event{}, io.EOF
	}
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	return DecodeBlock(d.sc.Bytes()), nil
}

// splitBlocks tokenizes on blank lines ("\n\n"). A trailing block without the
// terminator is still delivered at EOF.
func splitBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// wireBlock mirrors the protocol's field-presence dispatch: there is no type
// tag on the wire, only which keys are set.
type wireBlock struct {
	Keepalive bool `json:"keepalive"`
	Status    *struct {
		Message string `json:"message"`
	} `json:"status"`
	Chats *struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"chats"`
	Text *struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"text"`
	SourceURL string          `json:"sourceUrl"`
	Completed bool            `json:"completed"`
	DocID     string          `json:"docId"`
	Error     json.RawMessage `json:"error"`
}

// DecodeBlock decodes one block. Dispatch checks fields in a fixed priority
// order: keepalive first, then the session-ending fields (sourceUrl, error,
// completed), then status, chats, and text.
func DecodeBlock(block []byte) Event {
	trimmed := bytes.TrimSpace(block)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{Type: EventKeepalive}
	}
	var wb wireBlock
	if err := json.Unmarshal(trimmed, &wb); err != nil {
		return Event{Type: EventKeepalive}
	}
	switch {
	case wb.Keepalive:
		return Event{Type: EventKeepalive}
	case strings.TrimSpace(wb.SourceURL) != "":
		return Event{Type: EventSourceURL, URL: strings.TrimSpace(wb.SourceURL)}
	case len(wb.Error) > 0 && !bytes.Equal(wb.Error, []byte("null")):
		return Event{Type: EventError, Err: errorMessage(wb.Error)}
	case wb.Completed:
		return Event{Type: EventComplete, DocID: wb.DocID}
	case wb.Status != nil:
		return Event{Type: EventStatus, Message: wb.Status.Message}
	case wb.Chats != nil:
		return Event{Type: EventChat, Path: wb.Chats.Path, Content: wb.Chats.Content}
	case wb.Text != nil:
		return Event{Type: EventFileChunk, Path: wb.Text.Path, Content: wb.Text.Content}
	}
	return Event{Type: EventKeepalive}
}

// errorMessage tolerates both string and object error payloads.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
