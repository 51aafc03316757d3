package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	req := FromRequest("", "")
	require.Equal(t, 1, req.Page)
	require.Equal(t, DefaultLimit, req.Limit)

	req = FromRequest("3", "500")
	require.Equal(t, 3, req.Page)
	require.Equal(t, MaxLimit, req.Limit)
	require.Equal(t, 200, req.Offset())
}

func TestNew(t *testing.T) {
	p := New(2, 10, 25)
	require.Equal(t, 3, p.Pages)
	require.True(t, p.HasNext)
	require.True(t, p.HasPrev)
	require.Equal(t, 10, p.Offset)

	empty := New(1, 10, 0)
	require.Equal(t, 1, empty.Pages)
	require.False(t, empty.HasNext)
}
