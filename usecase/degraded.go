package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

const defaultChunkDelay = 30 * time.Millisecond

// Canned replies keyed by the keywords that select them. Each entry carries
// the spellings a recognizer transcript actually produces ("top selling"
// without the hyphen, "expire" as a verb). The first entry with any keyword
// in the lowercased input wins; the order below is the match order.
var degradedKeywords = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"stock"},
		reply: "Here's the current stock status: Office Chairs are running low with only 12 units left in Warehouse A. " +
			"Standing Desks have 45 units available, and Monitor Arms are well stocked with 230 units. " +
			"I'd recommend reordering Office Chairs soon.",
	},
	{
		keywords: []string{"top-selling", "top selling", "best-selling", "best selling"},
		reply: "The top-selling products this month are Standing Desks with 89 units sold, followed by " +
			"Ergonomic Keyboards at 67 units and Monitor Arms at 54 units. Standing Desks continue " +
			"to outperform projections by 15%.",
	},
	{
		keywords: []string{"warehouse"},
		reply: "Warehouse A is at 78% capacity with 1,240 items. Warehouse B is at 52% capacity with 890 items. " +
			"Warehouse C has the most free space at 31% capacity. All locations reported normal operations today.",
	},
	{
		keywords: []string{"expiry", "expire"},
		reply: "There are 3 product batches approaching expiry within 30 days: Batch #2241 of desk adhesive pads, " +
			"Batch #2258 of cleaning supplies, and Batch #2263 of label rolls. Consider running a clearance " +
			"promotion on these items.",
	},
}

const degradedFallbackReply = "I'm currently running in offline mode, so I can only answer questions about " +
	"stock levels, top-selling products, warehouse capacity, and expiry dates. Please try one of those, " +
	"or check the connection to the inventory agent."

// DegradedResponder generates deterministic canned replies when the remote
// agent is unreachable. Replies are delivered word by word through the same
// DeltaStream contract as the live agent so the accumulation path downstream
// does not change.
type DegradedResponder struct {
	logger     *zap.Logger
	chunkDelay time.Duration
}

// NewDegradedResponder creates a degraded-mode responder. A chunkDelay of
// zero is replaced with the default; tests pass a negative value to disable
// the inter-chunk pause entirely.
func NewDegradedResponder(chunkDelay time.Duration, logger *zap.Logger) *DegradedResponder {
	if chunkDelay == 0 {
		chunkDelay = defaultChunkDelay
		logger.Info("Using default degraded chunk delay", zap.Duration("chunkDelay", chunkDelay))
	}
	if chunkDelay < 0 {
		chunkDelay = 0
	}
	return &DegradedResponder{
		logger:     logger,
		chunkDelay: chunkDelay,
	}
}

// Respond selects a canned reply for the input and returns it as a stream of
// word chunks.
func (d *DegradedResponder) Respond(ctx context.Context, text string) repositories.DeltaStream {
	reply := selectReply(text)
	d.logger.Info("Serving degraded response",
		zap.Int("replyLength", len(reply)))

	return &degradedStream{
		ctx:   ctx,
		words: strings.Fields(reply),
		delay: d.chunkDelay,
	}
}

func selectReply(text string) string {
	lowered := strings.ToLower(text)
	for _, entry := range degradedKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.reply
			}
		}
	}
	return degradedFallbackReply
}

type degradedStream struct {
	ctx   context.Context
	words []string
	delay time.Duration
	pos   int

	mu     sync.Mutex
	closed bool
}

var _ repositories.DeltaStream = (*degradedStream)(nil)

// Recv returns the next word chunk. Every chunk except the last carries a
// trailing space so that plain concatenation downstream reproduces the reply.
func (s *degradedStream) Recv() (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.pos >= len(s.words) {
		return "", io.EOF
	}

	if s.delay > 0 && s.pos > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}

	chunk := s.words[s.pos]
	s.pos++
	if s.pos < len(s.words) {
		chunk += " "
	}
	return chunk, nil
}

func (s *degradedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
