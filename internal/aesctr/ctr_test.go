package aesctr

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestBlock(t testing.TB) cipher.Block {
	t.Helper()

	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i * 7)
	}

	block, err := aes.NewCipher(key)
	assert.NoError(t, err)

	return block
}

func TestXORKeyStreamMatchesStdlib(t *testing.T) {
	block := newTestBlock(t)
	iv := make([]byte, aes.BlockSize)
	iv[15] = 0xFE // close to a block counter carry

	for _, n := range []int{1, 15, 16, 17, 512, 513, 2000} {
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i % 251)
		}

		dst := make([]byte, n)
		New(block, iv).XORKeyStream(dst, src)

		expected := make([]byte, n)
		cipher.NewCTR(block, iv).XORKeyStream(expected, src)

		assert.Equal(t, expected, dst, "mismatch for length %d", n)
	}
}

// Successive calls must continue the keystream exactly where the
// previous call stopped.
func TestXORKeyStreamChunked(t *testing.T) {
	block := newTestBlock(t)
	iv := make([]byte, aes.BlockSize)

	src := make([]byte, 1000)
	for i := range src {
		src[i] = byte(i)
	}

	whole := make([]byte, len(src))
	New(block, iv).XORKeyStream(whole, src)

	chunked := make([]byte, len(src))
	stream := New(block, iv)
	for _, bounds := range [][2]int{{0, 1}, {1, 20}, {20, 512}, {512, 529}, {529, 1000}} {
		stream.XORKeyStream(chunked[bounds[0]:bounds[1]], src[bounds[0]:bounds[1]])
	}

	assert.Equal(t, whole, chunked)
}

func TestXORKeyStreamInverse(t *testing.T) {
	block := newTestBlock(t)
	iv := make([]byte, aes.BlockSize)

	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(0xF0 - i)
	}

	buf := make([]byte, len(src))
	New(block, iv).XORKeyStream(buf, src)
	assert.NotEqual(t, src, buf)

	New(block, iv).XORKeyStream(buf, buf)
	assert.Equal(t, src, buf)
}

func TestReset(t *testing.T) {
	block := newTestBlock(t)
	iv := make([]byte, aes.BlockSize)

	src := make([]byte, 50)
	first := make([]byte, len(src))
	second := make([]byte, len(src))

	stream := New(block, iv)
	stream.XORKeyStream(first, src)

	stream.Reset(iv)
	stream.XORKeyStream(second, src)

	assert.Equal(t, first, second)
}

func TestInvalidOverlapPanics(t *testing.T) {
	block := newTestBlock(t)
	iv := make([]byte, aes.BlockSize)
	buf := make([]byte, 32)

	// Exact overlap and disjoint buffers are fine.
	assert.NotPanics(t, func() { New(block, iv).XORKeyStream(buf, buf) })
	assert.NotPanics(t, func() { New(block, iv).XORKeyStream(make([]byte, 32), buf) })

	// Shifted views of the same buffer must be rejected.
	assert.Panics(t, func() { New(block, iv).XORKeyStream(buf[1:], buf[:31]) })
	assert.Panics(t, func() { New(block, iv).XORKeyStream(buf[:31], buf[1:]) })
}

func TestBadIVPanics(t *testing.T) {
	block := newTestBlock(t)

	assert.Panics(t, func() { New(block, make([]byte, 15)) })
	assert.Panics(t, func() { New(block, make([]byte, 17)) })
	assert.Panics(t, func() { New(block, make([]byte, 16)).Reset(make([]byte, 8)) })
}

func BenchmarkXORKeyStream(b *testing.B) {
	block := newTestBlock(b)
	iv := make([]byte, aes.BlockSize)
	buf := make([]byte, 1400)

	b.SetBytes(int64(len(buf)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		New(block, iv).XORKeyStream(buf, buf)
	}
}
