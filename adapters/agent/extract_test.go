package agent

import (
	"strings"
	"testing"
)

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{
			name:    "content parts",
			payload: `{"content":{"parts":[{"text":"Hello"},{"text":" world"}]}}`,
			want:    "Hello world",
		},
		{
			name:    "candidates parts",
			payload: `{"candidates":[{"content":{"parts":[{"text":"Hi"},{"text":" there"}]}}]}`,
			want:    "Hi there",
		},
		{
			name:    "delta content",
			payload: `{"choices":[{"delta":{"content":"chunk"}}]}`,
			want:    "chunk",
		},
		{
			name:    "bare string",
			payload: `"just text"`,
			want:    "just text",
		},
		{
			name:    "unknown shape",
			payload: `{"usage":{"tokens":12}}`,
			want:    "",
		},
		{
			name:    "empty payload",
			payload: "",
			want:    "",
		},
		{
			name:    "top-level array",
			payload: `[{"text":"ignored"}]`,
			want:    "",
		},
		{
			name:    "top-level number",
			payload: `42`,
			want:    "",
		},
		{
			name:    "top-level boolean",
			payload: `true`,
			want:    "",
		},
		{
			name:    "top-level null",
			payload: `null`,
			want:    "",
		},
		{
			name:    "malformed array",
			payload: `[1,2`,
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			payload: `{"content":{"parts":`,
			wantErr: true,
		},
		{
			name:    "malformed bare string",
			payload: `"unterminated`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractContent([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractContent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractContentPriorityOrder(t *testing.T) {
	// A payload carrying several shapes resolves to the highest-priority one.
	payload := `{
		"content":{"parts":[{"text":"primary"}]},
		"candidates":[{"content":{"parts":[{"text":"secondary"}]}}],
		"choices":[{"delta":{"content":"tertiary"}}]
	}`

	got, err := ExtractContent([]byte(payload))
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if got != "primary" {
		t.Errorf("ExtractContent() = %q, want %q", got, "primary")
	}
}

func TestExtractContentResponseObject(t *testing.T) {
	got, err := ExtractContent([]byte(`{"response":{"items":3,"status":"ok"}}`))
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}

	// Tool results are rendered as an indented object for display.
	if !strings.Contains(got, "\"status\": \"ok\"") {
		t.Errorf("response object not pretty-printed: %q", got)
	}
	if !strings.HasPrefix(got, "{") {
		t.Errorf("unexpected rendering: %q", got)
	}
}
