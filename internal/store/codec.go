package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Embeddings are stored as JSON float arrays. The format is debuggable with
// any sqlite shell and independent of host byte order; parsing cost is kept
// down with a hand-rolled scanner instead of encoding/json.

// encodeVector serializes an embedding for storage.
func encodeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("empty embedding")
	}
	var b strings.Builder
	b.Grow(len(vec) * 10)
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return []byte(b.String()), nil
}

// decodeVector parses a stored JSON float array into a []float32.
func decodeVector(data []byte) ([]float32, error) {
	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	if i == len(data) || data[i] != '[' {
		return nil, errors.New("expected '[' at start of embedding")
	}
	i++

	out := make([]float32, 0, 768)
	for i < len(data) {
		for i < len(data) && (isSpace(data[i]) || data[i] == ',') {
			i++
		}
		if i == len(data) {
			break
		}
		if data[i] == ']' {
			return out, nil
		}

		start := i
		for i < len(data) && data[i] != ',' && data[i] != ']' && !isSpace(data[i]) {
			i++
		}
		f, err := strconv.ParseFloat(string(data[start:i]), 32)
		if err != nil {
			return nil, fmt.Errorf("parse embedding element: %w", err)
		}
		out = append(out, float32(f))
	}
	return nil, errors.New("unterminated embedding array")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
