package endian

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()

	buf := engine.AppendUint32(nil, 0x11223344)
	require.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, buf)
	require.Equal(t, uint32(0x11223344), engine.Uint32(buf))
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AlignUp(tt.n, tt.align))
	}
}

func TestAppendPadding(t *testing.T) {
	buf := AppendPadding([]byte{1, 2, 3, 4, 5}, 4)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 0}, buf)

	buf = AppendPadding([]byte{1, 2, 3, 4}, 4)
	require.Len(t, buf, 4)
}

func TestCString(t *testing.T) {
	buf := AppendCString(nil, "main.obj")
	buf = AppendCString(buf, "")

	s, n, ok := CString(buf)
	require.True(t, ok)
	require.Equal(t, "main.obj", s)
	require.Equal(t, 9, n)

	s, n, ok = CString(buf[n:])
	require.True(t, ok)
	require.Empty(t, s)
	require.Equal(t, 1, n)

	_, _, ok = CString([]byte("abc"))
	require.False(t, ok)
}
