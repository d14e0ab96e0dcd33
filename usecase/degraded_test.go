package usecase

import (
	"context"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func collectStream(t *testing.T, stream interface {
	Recv() (string, error)
	Close() error
}) []string {
	t.Helper()
	defer stream.Close()
	var chunks []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		chunks = append(chunks, chunk)
	}
}

func TestDegradedKeywordSelection(t *testing.T) {
	responder := NewDegradedResponder(-1, zaptest.NewLogger(t))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "stock", input: "check stock for chairs", want: "Office Chairs"},
		{name: "top-selling", input: "what are the top-selling products", want: "Standing Desks"},
		{name: "top selling unhyphenated", input: "show me the top selling items", want: "Standing Desks"},
		{name: "best-selling", input: "best-selling products this month", want: "Standing Desks"},
		{name: "best selling unhyphenated", input: "what's been best selling lately", want: "Standing Desks"},
		{name: "warehouse", input: "how full is warehouse A", want: "capacity"},
		{name: "expiry", input: "anything near expiry?", want: "30 days"},
		{name: "expire verb", input: "which products expire soon", want: "30 days"},
		{name: "expired past tense", input: "has anything expired", want: "30 days"},
		{name: "case insensitive", input: "CHECK STOCK NOW", want: "Office Chairs"},
		{name: "fallback", input: "tell me a joke", want: "offline mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := collectStream(t, responder.Respond(context.Background(), tt.input))
			full := strings.Join(chunks, "")
			if !strings.Contains(full, tt.want) {
				t.Errorf("reply %q does not contain %q", full, tt.want)
			}
		})
	}
}

func TestDegradedChunkContract(t *testing.T) {
	responder := NewDegradedResponder(-1, zaptest.NewLogger(t))

	chunks := collectStream(t, responder.Respond(context.Background(), "check stock"))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want word-by-word delivery", len(chunks))
	}

	// Every chunk except the last carries its separating space, so plain
	// concatenation reproduces the reply exactly.
	for i, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk, " ") {
			t.Errorf("chunk %d = %q missing trailing space", i, chunk)
		}
	}
	last := chunks[len(chunks)-1]
	if strings.HasSuffix(last, " ") {
		t.Errorf("last chunk %q has trailing space", last)
	}

	if got := strings.Join(chunks, ""); got != degradedKeywords[0].reply {
		t.Errorf("concatenated = %q, want the stock reply", got)
	}
}

func TestDegradedDeterministic(t *testing.T) {
	responder := NewDegradedResponder(-1, zaptest.NewLogger(t))

	first := strings.Join(collectStream(t, responder.Respond(context.Background(), "warehouse status")), "")
	second := strings.Join(collectStream(t, responder.Respond(context.Background(), "warehouse status")), "")
	if first != second {
		t.Error("degraded responses differ between calls")
	}
}

func TestDegradedStreamCloseEndsRecv(t *testing.T) {
	responder := NewDegradedResponder(-1, zaptest.NewLogger(t))

	stream := responder.Respond(context.Background(), "check stock")
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	stream.Close()
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Recv() after Close error = %v, want io.EOF", err)
	}
}
