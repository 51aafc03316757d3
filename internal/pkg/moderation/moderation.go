// Package moderation holds the content check consulted before a chat message
// is persisted. The production rules live in an external service; BasicChecker
// is the in-process stand-in.
package moderation

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xyz-asif/blindmatch/internal/pkg/validator"
)

const DefaultMaxLength = 2000

type Result struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

type Checker interface {
	Check(ctx context.Context, text string) (Result, error)
}

// BasicChecker rejects empty text, oversized text, links and a configurable
// list of blocked words.
type BasicChecker struct {
	MaxLength    int
	AllowLinks   bool
	BlockedWords []string
}

func NewBasicChecker(blocked ...string) *BasicChecker {
	words := make([]string, 0, len(blocked))
	for _, w := range blocked {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return &BasicChecker{MaxLength: DefaultMaxLength, BlockedWords: words}
}

func (b *BasicChecker) Check(_ context.Context, text string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Reason: "empty message"}, nil
	}
	limit := b.MaxLength
	if limit <= 0 {
		limit = DefaultMaxLength
	}
	if utf8.RuneCountInString(trimmed) > limit {
		return Result{Reason: "message too long"}, nil
	}
	if !b.AllowLinks && validator.ContainsLink(trimmed) {
		return Result{Reason: "links are not allowed"}, nil
	}
	lower := strings.ToLower(trimmed)
	for _, w := range b.BlockedWords {
		if strings.Contains(lower, w) {
			return Result{Reason: "inappropriate language"}, nil
		}
	}
	return Result{Safe: true}, nil
}
