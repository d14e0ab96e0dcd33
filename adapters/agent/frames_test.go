package agent

import (
	"io"
	"strings"
	"testing"
)

// chunkedReader delivers its chunks one Read at a time, regardless of the
// caller's buffer size, to simulate arbitrary network chunk boundaries.
type chunkedReader struct {
	chunks []string
	pos    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func readAllFrames(t *testing.T, reader *FrameReader) []string {
	t.Helper()
	var frames []string
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		frames = append(frames, frame)
	}
}

func TestFrameReaderReassemblesSplitFrame(t *testing.T) {
	// One frame delivered as three chunks splitting mid-token.
	reader := NewFrameReader(&chunkedReader{chunks: []string{
		"data: {\"content\":{\"pa",
		"rts\":[{\"text\":\"Hel",
		"lo\"}]}}\n",
	}})

	frames := readAllFrames(t, reader)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	text, err := ExtractContent([]byte(frames[0]))
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("extracted text = %q, want %q", text, "Hello")
	}
}

func TestFrameReaderChunkBoundaryInvariance(t *testing.T) {
	body := "data: {\"a\":1}\n\ndata: {\"b\":2}\nplain-line\ndata: [DONE]\ndata: {\"after\":3}\n"
	want := []string{`{"a":1}`, `{"b":2}`, "plain-line"}

	tests := []struct {
		name   string
		chunks []string
	}{
		{name: "single chunk", chunks: []string{body}},
		{name: "byte at a time", chunks: strings.Split(body, "")},
		{name: "split inside prefix", chunks: []string{body[:3], body[3:20], body[20:]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := readAllFrames(t, NewFrameReader(&chunkedReader{chunks: tt.chunks}))
			if len(frames) != len(want) {
				t.Fatalf("got %d frames %v, want %d", len(frames), frames, len(want))
			}
			for i := range want {
				if frames[i] != want[i] {
					t.Errorf("frame %d = %q, want %q", i, frames[i], want[i])
				}
			}
		})
	}
}

func TestFrameReaderSentinelStopsStream(t *testing.T) {
	reader := NewFrameReader(strings.NewReader("data: [DONE]\ndata: {\"x\":1}\n"))

	if frames := readAllFrames(t, reader); len(frames) != 0 {
		t.Errorf("frames after sentinel = %v, want none", frames)
	}

	// Next stays terminal after EOF.
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next() after end error = %v, want io.EOF", err)
	}
}

func TestFrameReaderDiscardsTruncatedTrailingLine(t *testing.T) {
	reader := NewFrameReader(strings.NewReader("data: {\"a\":1}\ndata: {\"trunc"))

	frames := readAllFrames(t, reader)
	if len(frames) != 1 || frames[0] != `{"a":1}` {
		t.Errorf("frames = %v, want only the complete frame", frames)
	}
}

func TestFrameReaderCarriageReturns(t *testing.T) {
	reader := NewFrameReader(strings.NewReader("data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n"))

	frames := readAllFrames(t, reader)
	if len(frames) != 1 || frames[0] != `{"a":1}` {
		t.Errorf("frames = %v", frames)
	}
}
