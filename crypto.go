package srtp

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // required by RFC 3711
	"crypto/subtle"
	"encoding/binary"

	"github.com/voicebridge/srtp/internal/aesctr"
)

// xorBytesCTR generates a keystream starting at the given 16 byte
// counter and XORs it into src, writing the result to dst. It is its
// own inverse: the same call with the same inputs decrypts. Dst and src
// must overlap entirely or not at all.
func xorBytesCTR(block cipher.Block, iv []byte, dst, src []byte) error {
	if len(iv) != block.BlockSize() {
		return errBadIVLength
	}

	stream := aesctr.New(block, iv)
	stream.XORKeyStream(dst, src)

	return nil
}

// generateCounter builds the per-packet IV from the session salt, the
// sender SSRC and the 48 bit packet index (rolloverCounter<<16 | seq).
// The SSRC lands in bytes 4-7 and the index in bytes 8-13 of the XOR
// mask; bytes 0-3 and 14-15 keep the pure salt value. Distinct
// (ssrc, index) pairs therefore always yield distinct IVs under one
// salt, which is what keeps the keystream from ever being reused.
func generateCounter(sequenceNumber uint16, rolloverCounter uint32, ssrc uint32, sessionSalt []byte) [16]byte {
	var counter [16]byte

	binary.BigEndian.PutUint32(counter[4:], ssrc)
	binary.BigEndian.PutUint32(counter[8:], rolloverCounter)
	binary.BigEndian.PutUint32(counter[12:], uint32(sequenceNumber)<<16)

	for i := range sessionSalt {
		counter[i] ^= sessionSalt[i]
	}

	return counter
}

// generateAuthTag computes HMAC-SHA1 over buf and truncates it to
// tagLen bytes, per the protection profile.
func generateAuthTag(sessionAuthKey, buf []byte, tagLen int) ([]byte, error) {
	mac := hmac.New(sha1.New, sessionAuthKey)

	if _, err := mac.Write(buf); err != nil {
		return nil, err
	}

	return mac.Sum(nil)[0:tagLen], nil
}

// verifyAuthTag recomputes the tag over buf and compares it to
// actualTag in constant time with respect to the tag contents.
func verifyAuthTag(sessionAuthKey, buf, actualTag []byte) error {
	expectedTag, err := generateAuthTag(sessionAuthKey, buf, len(actualTag))
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(actualTag, expectedTag) != 1 {
		return ErrFailedToVerifyAuthTag
	}

	return nil
}

// growBufferSize grows the buffer to the given size, reallocating only
// if the capacity is insufficient.
func growBufferSize(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}

	buf2 := make([]byte, size)
	copy(buf2, buf)

	return buf2
}

// isSameBuffer reports whether dst and src share the same backing
// memory, in which case the plaintext copy steps can be skipped.
func isSameBuffer(dst, src []byte) bool {
	return len(dst) > 0 && len(src) > 0 && &dst[0] == &src[0]
}
