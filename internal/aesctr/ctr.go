// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aesctr implements the counter-mode keystream generator used
// for both payload encryption and key derivation: successive values of
// a big-endian 128 bit counter are encrypted with AES and the cipher
// blocks are XORed into the data. Running the same keystream over a
// buffer twice restores the original bytes.
//
// Derived from crypto/cipher's CTR mode, buffered per AES block batch.
// See NIST SP 800-38A, pp 13-15.
package aesctr

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pion/transport/v3/utils/xor"
)

// Must be a multiple of aes.BlockSize.
const streamBufferSize = 32 * aes.BlockSize

// Stream is a CTR cipher stream optimized for AES.
type Stream struct {
	b       cipher.Block
	ctr     [aes.BlockSize]byte
	out     [streamBufferSize]byte
	outUsed int
}

// New returns a Stream which encrypts/decrypts using the given Block in
// counter mode. The length of iv must be the same as aes.BlockSize.
func New(block cipher.Block, iv []byte) *Stream {
	if len(iv) != aes.BlockSize {
		panic("aesctr.New: IV length must equal AES block size")
	}

	x := &Stream{b: block}
	x.outUsed = len(x.out)
	copy(x.ctr[:], iv)

	return x
}

// XORKeyStream XORs each byte in src with a byte from the keystream and
// writes the result to dst. Dst and src must overlap entirely or not at
// all, and dst must be at least as long as src.
//
// Multiple calls behave as if the concatenation of the src buffers was
// passed in a single run: the Stream keeps its counter position between
// calls.
func (x *Stream) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("aesctr: output smaller than input")
	}

	if inexactOverlap(dst[:len(src)], src) {
		panic("aesctr: invalid buffer overlap")
	}

	// Use the remainder of x.out first.
	if x.outUsed < len(x.out) {
		n := xorBytes(dst, src, x.out[x.outUsed:])
		dst = dst[n:]
		src = src[n:]
		x.outUsed += n
	}

	for len(src) > 0 {
		// Refill x.out with the next batch of keystream blocks.
		for i := 0; i < len(x.out); i += aes.BlockSize {
			x.b.Encrypt(x.out[i:], x.ctr[:])

			// Increment the big-endian counter.
			for j := len(x.ctr) - 1; j >= 0; j-- {
				x.ctr[j]++
				if x.ctr[j] != 0 {
					break
				}
			}
		}

		n := xorBytes(dst, src, x.out[:])
		dst = dst[n:]
		src = src[n:]
		x.outUsed = n
	}
}

// Reset rewinds the cipher to the given IV so the Stream can be reused
// for another packet.
func (x *Stream) Reset(iv []byte) {
	if len(iv) != aes.BlockSize {
		panic("aesctr.Reset: IV length must equal AES block size")
	}

	copy(x.ctr[:], iv)
	x.outUsed = len(x.out)
}

// xorBytes XORs the shortest common prefix of a and b into dst and
// returns the number of bytes written.
func xorBytes(dst, a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(dst) < n {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	return xor.XorBytes(dst[:n], a[:n], b[:n])
}
