package pool

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ByteBuffer Tests
// =============================================================================

func TestNewByteBuffer(t *testing.T) {
	bb := NewByteBuffer(1024)

	require.NotNil(t, bb)
	assert.Equal(t, 0, bb.Len(), "new buffer should have zero length")
	assert.Equal(t, 1024, cap(bb.B), "new buffer should have specified capacity")
}

func TestByteBuffer_Reset(t *testing.T) {
	bb := NewByteBuffer(RecordBufferDefaultSize)
	bb.MustWrite([]byte("some data"))
	originalCap := cap(bb.B)

	bb.Reset()

	assert.Equal(t, 0, bb.Len(), "Reset should clear the buffer length")
	assert.Equal(t, originalCap, cap(bb.B), "Reset should preserve capacity")
}

func TestByteBuffer_LittleEndianHelpers(t *testing.T) {
	bb := NewByteBuffer(16)

	bb.WriteUint16(0x1122)
	bb.WriteUint32(0x33445566)
	require.NoError(t, bb.WriteByte(0x77))

	assert.Equal(t, []byte{0x22, 0x11, 0x66, 0x55, 0x44, 0x33, 0x77}, bb.Bytes())
}

func TestByteBuffer_CStringAndAlign(t *testing.T) {
	bb := NewByteBuffer(16)

	bb.WriteCString("abc")
	assert.Equal(t, 4, bb.Len())

	bb.WriteCString("de")
	bb.Align(4)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 'd', 'e', 0, 0}, bb.Bytes())
}

func TestByteBuffer_PutUint32At(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.WriteUint32(0)
	bb.WriteUint32(0xffffffff)

	bb.PutUint32At(4, 0x01020304)

	assert.Equal(t, []byte{0, 0, 0, 0, 4, 3, 2, 1}, bb.Bytes())
	assert.Panics(t, func() { bb.PutUint32At(6, 1) })
}

func TestByteBuffer_Write(t *testing.T) {
	bb := NewByteBuffer(StreamBufferDefaultSize)

	n, err := bb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = bb.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("hello world"), bb.B)
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("stream"))

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "stream", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestByteBuffer_WriteTo_ErrorPropagation(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("x"))

	_, err := bb.WriteTo(failingWriter{})
	require.EqualError(t, err, "disk full")
}

func TestByteBuffer_Grow(t *testing.T) {
	t.Run("sufficient capacity", func(t *testing.T) {
		bb := NewByteBuffer(100)
		bb.Grow(50)
		assert.Equal(t, 100, cap(bb.B))
	})

	t.Run("small buffer grows by default size", func(t *testing.T) {
		bb := NewByteBuffer(10)
		bb.MustWrite(make([]byte, 10))
		bb.Grow(1)
		assert.Equal(t, 10+StreamBufferDefaultSize, cap(bb.B))
	})

	t.Run("large request", func(t *testing.T) {
		bb := NewByteBuffer(0)
		bb.Grow(StreamBufferDefaultSize * 2)
		assert.GreaterOrEqual(t, cap(bb.B), StreamBufferDefaultSize*2)
	})

	t.Run("preserves data", func(t *testing.T) {
		bb := NewByteBuffer(4)
		bb.MustWrite([]byte("data"))
		bb.Grow(1000)
		assert.Equal(t, []byte("data"), bb.B)
	})
}

// =============================================================================
// Pool Tests
// =============================================================================

func TestGetRecordBuffer(t *testing.T) {
	bb := GetRecordBuffer()
	require.NotNil(t, bb)
	assert.Equal(t, 0, bb.Len())
	PutRecordBuffer(bb)
}

func TestPutRecordBuffer_NilBuffer(t *testing.T) {
	assert.NotPanics(t, func() { PutRecordBuffer(nil) })
}

func TestByteBufferPool_ResetsOnPut(t *testing.T) {
	p := NewByteBufferPool(64, 0)

	bb := p.Get()
	bb.MustWrite([]byte("stale"))
	p.Put(bb)

	again := p.Get()
	assert.Equal(t, 0, again.Len())
}

func TestByteBufferPool_MaxThreshold_Discard(t *testing.T) {
	p := NewByteBufferPool(16, 32)

	bb := NewByteBuffer(1024)
	bb.MustWrite([]byte("oversized"))
	p.Put(bb)

	got := p.Get()
	assert.NotSame(t, bb, got)
}

func TestByteBufferPool_ConcurrentAccess(t *testing.T) {
	p := NewByteBufferPool(64, 1024)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bb := p.Get()
				bb.WriteUint32(uint32(j)) //nolint: gosec
				p.Put(bb)
			}
		}()
	}
	wg.Wait()
}
