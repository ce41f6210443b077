package util

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	got, err := SafeJoin("out", "run-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("out", "run-1"), got)

	got, err = SafeJoin("out", "../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("out", "passwd"), got)

	for _, bad := range []string{"", " ", "..", "/"} {
		_, err := SafeJoin("out", bad)
		require.Error(t, err, bad)
	}
}
