// Package delivery splits oversized outbound text into transport-sized
// chunks and paces their dispatch.
package delivery

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
)

// breakFraction is how far into a chunk a sentence break must sit to be
// preferred over a hard cut. Breaking earlier would produce stubby parts.
const breakFraction = 0.7

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// splitRunes cuts text into pieces of at most limit runes, preferring the
// last sentence-ending rune past breakFraction of the limit.
func splitRunes(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	minBreak := int(float64(limit) * breakFraction)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= minBreak; i-- {
			if isSentenceEnd(runes[i]) {
				cut = i + 1
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n' || runes[0] == '\t') {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		parts = append(parts, strings.TrimSpace(string(runes)))
	}
	return parts
}

// Split breaks text into parts of at most limit runes each. When more
// than one part results, every part carries an " (i/n)" suffix and still
// fits within limit. Empty parts are never produced.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	// The suffix width depends on the part count, which depends on the
	// effective limit. Re-split until the count is stable.
	parts := splitRunes(text, limit)
	for {
		reserve := len(fmt.Sprintf(" (%d/%d)", len(parts), len(parts)))
		if limit-reserve < 1 {
			break
		}
		resplit := splitRunes(text, limit-reserve)
		if len(resplit) == len(parts) {
			parts = resplit
			break
		}
		parts = resplit
	}

	for i := range parts {
		parts[i] = fmt.Sprintf("%s (%d/%d)", parts[i], i+1, len(parts))
	}
	return parts
}

// SendFunc dispatches one chunk to a chat.
type SendFunc func(ctx context.Context, text string) error

// Sender delivers outbound text, chunking and pacing as configured.
type Sender struct {
	cfg config.DeliveryConfig
}

// NewSender creates a Sender with the given delivery policy.
func NewSender(cfg config.DeliveryConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Deliver sends text through send, splitting it into chunks no longer
// than the configured limit and sleeping a randomized delay between
// consecutive chunks. It stops on the first send error or when ctx is
// canceled.
func (s *Sender) Deliver(ctx context.Context, send SendFunc, text string) error {
	parts := Split(text, s.cfg.ChunkLimit)
	for i, part := range parts {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
		if err := send(ctx, part); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (s *Sender) pause(ctx context.Context) error {
	delay := s.cfg.MinChunkDelay
	if spread := s.cfg.MaxChunkDelay - s.cfg.MinChunkDelay; spread > 0 {
		delay += rand.N(spread)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
