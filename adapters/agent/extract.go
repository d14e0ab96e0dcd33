package agent

import (
	"bytes"
	"encoding/json"
)

// framePart is one text fragment inside a parts array.
type framePart struct {
	Text string `json:"text"`
}

// frameRecord covers the payload shapes the stream is known to carry.
// Different backend integrations produce different ones, so extraction
// tries them in a fixed priority order.
type frameRecord struct {
	Content *struct {
		Parts []framePart `json:"parts"`
	} `json:"content"`
	Candidates []struct {
		Content struct {
			Parts []framePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Response json.RawMessage `json:"response"`
}

// ExtractContent pulls the plain-text delta out of one decoded frame
// payload. Shapes are tried in priority order:
//
//  1. content.parts           — each part's text, concatenated in order
//  2. candidates[0].content.parts — same concatenation
//  3. choices[0].delta.content    — returned directly
//  4. response (object)           — pretty-printed, used for tool results
//  5. bare string payload         — returned as-is
//
// An unrecognized shape yields the empty string; malformed JSON yields an
// error so the caller can skip the frame without aborting the stream.
func ExtractContent(payload []byte) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	// Valid JSON that is neither an object nor a bare string (array,
	// number, boolean, null) is an unrecognized shape, not an error.
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			var v interface{}
			return "", json.Unmarshal(trimmed, &v)
		}
		return "", nil
	}

	var rec frameRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return "", err
	}

	switch {
	case rec.Content != nil && rec.Content.Parts != nil:
		return joinParts(rec.Content.Parts), nil

	case len(rec.Candidates) > 0 && rec.Candidates[0].Content.Parts != nil:
		return joinParts(rec.Candidates[0].Content.Parts), nil

	case len(rec.Choices) > 0 && rec.Choices[0].Delta.Content != "":
		return rec.Choices[0].Delta.Content, nil

	case isJSONObject(rec.Response):
		var obj map[string]interface{}
		if err := json.Unmarshal(rec.Response, &obj); err != nil {
			return "", err
		}
		pretty, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return "", err
		}
		return string(pretty), nil
	}

	return "", nil
}

func joinParts(parts []framePart) string {
	var out string
	for _, p := range parts {
		out += p.Text
	}
	return out
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
