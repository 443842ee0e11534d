package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	require.NoError(t, SetLevel(" DEBUG "))
	require.NoError(t, SetLevel(""))
	require.NoError(t, Quiet())
}
