package moderation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicChecker(t *testing.T) {
	c := NewBasicChecker("Darn", " ")
	ctx := context.Background()

	tests := []struct {
		name   string
		text   string
		safe   bool
		reason string
	}{
		{"plain text", "hey, how was your weekend?", true, ""},
		{"empty", "   ", false, "empty message"},
		{"link", "check www.example.com", false, "links are not allowed"},
		{"blocked word", "well DARN it", false, "inappropriate language"},
		{"too long", strings.Repeat("x", DefaultMaxLength+1), false, "message too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Check(ctx, tt.text)
			require.NoError(t, err)
			require.Equal(t, tt.safe, res.Safe)
			require.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestBasicCheckerAllowLinks(t *testing.T) {
	c := NewBasicChecker()
	c.AllowLinks = true

	res, err := c.Check(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.True(t, res.Safe)
}
