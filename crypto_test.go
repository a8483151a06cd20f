// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package srtp

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPacketCounter(t *testing.T) {
	masterKey := []byte{0x0d, 0xcd, 0x21, 0x3e, 0x4c, 0xbc, 0xf2, 0x8f, 0x01, 0x7f, 0x69, 0x94, 0x40, 0x1e, 0x28, 0x89}
	masterSalt := []byte{0x62, 0x77, 0x60, 0x38, 0xc0, 0x6d, 0xc9, 0x41, 0x9f, 0x6d, 0xd9, 0x43, 0x3e, 0x7c}

	srtpSessionSalt, err := aesCmKeyDerivation(labelSRTPSalt, masterKey, masterSalt, 0, len(masterSalt))
	assert.NoError(t, err)

	s := &srtpSSRCState{ssrc: 4160032510}
	expectedCounter := []byte{0xcf, 0x90, 0x1e, 0xa5, 0xda, 0xd3, 0x2c, 0x15, 0x00, 0xa2, 0x24, 0xae, 0xae, 0xaf, 0x00, 0x00}
	counter := generateCounter(32846, s.rolloverCounter, s.ssrc, srtpSessionSalt)
	assert.Equal(t, expectedCounter, counter[:])
}

// The custom counter-mode stream must produce exactly the output of the
// standard library CTR stream for the same key and IV.
func TestXorBytesCTRMatchesReference(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i * 3)
	}
	for i := range iv {
		iv[i] = byte(0xA0 + i)
	}

	for _, n := range []int{0, 1, 15, 16, 17, 255, 256, 1000} {
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i)
		}

		block, err := aes.NewCipher(key)
		assert.NoError(t, err)

		dst := make([]byte, n)
		assert.NoError(t, xorBytesCTR(block, iv, dst, src))

		expected := make([]byte, n)
		cipher.NewCTR(block, iv).XORKeyStream(expected, src)

		assert.Equal(t, expected, dst, "mismatch for length %d", n)
	}
}

// Encrypting in place must give the same result as encrypting into a
// separate buffer.
func TestXorBytesCTRInPlace(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	block, err := aes.NewCipher(key)
	assert.NoError(t, err)

	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(i)
	}

	separate := make([]byte, len(src))
	assert.NoError(t, xorBytesCTR(block, iv, separate, src))

	inPlace := make([]byte, len(src))
	copy(inPlace, src)
	assert.NoError(t, xorBytesCTR(block, iv, inPlace, inPlace))

	assert.Equal(t, separate, inPlace)
}

func TestXorBytesCTRInvalidIvLength(t *testing.T) {
	key := make([]byte, 16)
	block, err := aes.NewCipher(key)
	assert.NoError(t, err)

	src := make([]byte, 16)
	dst := make([]byte, 16)

	for _, ivLen := range []int{15, 17} {
		assert.ErrorIs(t, xorBytesCTR(block, make([]byte, ivLen), dst, src), errBadIVLength)
	}
}

// Distinct (ssrc, index) pairs must never map to the same counter under
// one salt.
func TestCounterUniqueness(t *testing.T) {
	salt := make([]byte, 14)
	for i := range salt {
		salt[i] = byte(i)
	}

	seen := map[[16]byte]string{}
	add := func(name string, seq uint16, roc uint32, ssrc uint32) {
		c := generateCounter(seq, roc, ssrc, salt)
		if prev, ok := seen[c]; ok {
			t.Errorf("counter collision between %s and %s", prev, name)
		}
		seen[c] = name
	}

	add("seq0", 0, 0, 1)
	add("seq1", 1, 0, 1)
	add("roc1", 0, 1, 1)
	add("ssrc2", 0, 0, 2)
	add("wrap", 0xFFFF, 0, 1)
	add("wrap+roc", 0xFFFF, 1, 1)
}

func TestGenerateAuthTag(t *testing.T) {
	key := make([]byte, 20)
	for i := range key {
		key[i] = byte(i)
	}
	buf := []byte("some authenticated content")

	tag10, err := generateAuthTag(key, buf, 10)
	assert.NoError(t, err)
	assert.Len(t, tag10, 10)

	tag4, err := generateAuthTag(key, buf, 4)
	assert.NoError(t, err)
	assert.Len(t, tag4, 4)

	// The short tag is a prefix of the long one.
	assert.True(t, bytes.HasPrefix(tag10, tag4))

	assert.NoError(t, verifyAuthTag(key, buf, tag10))
	assert.NoError(t, verifyAuthTag(key, buf, tag4))

	tampered := make([]byte, len(tag10))
	copy(tampered, tag10)
	tampered[0] ^= 0x01
	assert.ErrorIs(t, verifyAuthTag(key, buf, tampered), ErrFailedToVerifyAuthTag)

	otherKey := make([]byte, 20)
	assert.ErrorIs(t, verifyAuthTag(otherKey, buf, tag10), ErrFailedToVerifyAuthTag)
}

func TestGrowBufferSize(t *testing.T) {
	buf := make([]byte, 4, 8)
	buf[0], buf[1], buf[2], buf[3] = 1, 2, 3, 4

	grown := growBufferSize(buf, 6)
	assert.Len(t, grown, 6)
	assert.Equal(t, []byte{1, 2, 3, 4}, grown[:4])
	assert.Equal(t, &buf[0], &grown[0], "should not reallocate within capacity")

	realloc := growBufferSize(buf, 16)
	assert.Len(t, realloc, 16)
	assert.Equal(t, []byte{1, 2, 3, 4}, realloc[:4])
	assert.NotSame(t, &buf[0], &realloc[0])
}
