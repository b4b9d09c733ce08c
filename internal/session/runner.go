package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"counsel/internal/logging"
	"counsel/internal/types"
)

// Emit receives each merged suggestion as it is produced, together with the
// fragment that triggered it.
type Emit func(fragment types.TranscriptFragment, suggestion types.DedupedSuggestion)

// Run drives a session from a line-oriented transcript stream until EOF,
// the context ends, or the session is ended from another goroutine. Each
// line is either a TranscriptFragment JSON object or plain text, which is
// treated as a final fragment from the counterpart — convenient for piping
// a transcript file or typing into stdin.
func Run(ctx context.Context, r io.Reader, s *Session, emit Emit) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.IsActive() {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fragment := ParseFragment(line)
		for _, sug := range s.HandleFragment(ctx, fragment) {
			if emit != nil {
				emit(fragment, sug)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("session: read transcript: %w", err)
	}
	return nil
}

// ParseFragment decodes one transcript line. Lines that are not JSON
// objects become final counterpart fragments as-is.
func ParseFragment(line string) types.TranscriptFragment {
	if strings.HasPrefix(line, "{") {
		var f types.TranscriptFragment
		if err := json.Unmarshal([]byte(line), &f); err == nil {
			if f.Timestamp.IsZero() {
				f.Timestamp = time.Now()
			}
			return f
		}
		logging.SessionDebug("transcript line is not valid fragment JSON, treating as text")
	}
	return types.TranscriptFragment{Text: line, IsFinal: true, Timestamp: time.Now()}
}
