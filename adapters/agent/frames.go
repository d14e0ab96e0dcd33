package agent

import (
	"io"
	"strings"
)

const (
	// framePrefix is the transport envelope prepended to payload lines.
	framePrefix = "data:"
	// frameSentinel terminates the stream without carrying a payload.
	frameSentinel = "[DONE]"
)

// FrameReader reassembles a chunked response body into newline-delimited
// frames. Chunks arrive at unpredictable boundaries; a chunk may split a
// line or contain several. One pending-partial-line buffer carries the
// remainder across chunks, so line order is preserved exactly as if the
// body had arrived unsplit.
type FrameReader struct {
	source io.Reader
	buf    []byte
	rest   string
	eof    bool
	done   bool
}

// NewFrameReader wraps a chunked byte source.
func NewFrameReader(source io.Reader) *FrameReader {
	return &FrameReader{
		source: source,
		buf:    make([]byte, 4096),
	}
}

// Next returns the payload of the next complete frame with the transport
// prefix stripped. Empty lines are skipped. It returns io.EOF once the
// source ends or the termination sentinel was seen; a truncated trailing
// line at end of stream is discarded, not emitted.
func (f *FrameReader) Next() (string, error) {
	if f.done {
		return "", io.EOF
	}

	for {
		if line, ok := f.takeLine(); ok {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, framePrefix) {
				line = strings.TrimSpace(line[len(framePrefix):])
			}
			if line == frameSentinel {
				f.done = true
				return "", io.EOF
			}
			if line == "" {
				continue
			}
			return line, nil
		}

		if f.eof {
			// Whatever is left in the buffer never got its terminator;
			// a truncated frame is not a valid frame.
			f.done = true
			return "", io.EOF
		}

		n, err := f.source.Read(f.buf)
		if n > 0 {
			f.rest += string(f.buf[:n])
		}
		if err == io.EOF {
			f.eof = true
		} else if err != nil {
			f.done = true
			return "", err
		}
	}
}

// takeLine extracts the next complete line from the pending buffer.
func (f *FrameReader) takeLine() (string, bool) {
	idx := strings.IndexByte(f.rest, '\n')
	if idx < 0 {
		return "", false
	}
	line := f.rest[:idx]
	f.rest = f.rest[idx+1:]
	line = strings.TrimSuffix(line, "\r")
	return line, true
}
