package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/pion/rtcp"
	"github.com/pion/transport/v3/replaydetector"
)

const (
	srtcpHeaderSize = 8
	srtcpIndexSize  = 4

	// The top bit of the trailer marks the payload as encrypted; the
	// remaining 31 bits carry the SRTCP index.
	srtcpEncryptionFlag byte = 0x80

	maxSRTCPIndex = 0x7FFFFFFF
)

// srtcpContext protects and unprotects RTCP packets for one direction.
//
// The SRTCP index is owned by the context as a whole, not per sender:
// every packet encrypted through this context consumes the next value.
// Allocation is a single atomic operation because handing the same
// index to two packets would reuse a counter-mode IV and break
// confidentiality outright. A shared counter is exact for a single
// sending SSRC; a context multiplexing several distinct senders burns
// through the 31 bit space faster than one counter per sender would.
type srtcpContext struct {
	block          cipher.Block
	sessionSalt    []byte
	sessionAuthKey []byte
	authTagLen     int

	index atomic.Uint32

	// mu guards the decrypt-side replay states only.
	mu                sync.Mutex
	states            map[uint32]*srtcpSSRCState
	newReplayDetector func() replaydetector.ReplayDetector
}

type srtcpSSRCState struct {
	ssrc           uint32
	replayDetector replaydetector.ReplayDetector
}

func newSRTCPContext(keys *sessionKeys, authTagLen int) (*srtcpContext, error) {
	block, err := aes.NewCipher(keys.srtcpSessionKey)
	if err != nil {
		return nil, err
	}

	return &srtcpContext{
		block:          block,
		sessionSalt:    keys.srtcpSessionSalt,
		sessionAuthKey: keys.srtcpSessionAuthKey,
		authTagLen:     authTagLen,
		states:         map[uint32]*srtcpSSRCState{},
	}, nil
}

// nextIndex atomically allocates the next 31 bit index, wrapping to
// zero past the top. No two packets may ever receive the same value.
func (c *srtcpContext) nextIndex() uint32 {
	for {
		old := c.index.Load()
		next := old + 1
		if next > maxSRTCPIndex {
			next = 0
		}
		if c.index.CompareAndSwap(old, next) {
			return next
		}
	}
}

// getState is the decrypt-side replay state, lazily created per SSRC.
// Callers must hold c.mu.
func (c *srtcpContext) getState(ssrc uint32) *srtcpSSRCState {
	s, ok := c.states[ssrc]
	if ok {
		return s
	}

	s = &srtcpSSRCState{
		ssrc:           ssrc,
		replayDetector: c.newReplayDetector(),
	}
	c.states[ssrc] = s

	return s
}

func (c *srtcpContext) encryptRTCP(dst, decrypted []byte, header *rtcp.Header) ([]byte, error) {
	if len(decrypted) < srtcpHeaderSize {
		return nil, errTooShortRTCP
	}
	if err := header.Unmarshal(decrypted); err != nil {
		return nil, err
	}

	ssrc := binary.BigEndian.Uint32(decrypted[4:8])
	index := c.nextIndex()

	dst = growBufferSize(dst, len(decrypted)+srtcpIndexSize+c.authTagLen)
	if !isSameBuffer(dst, decrypted) {
		copy(dst, decrypted[:srtcpHeaderSize])
	}

	// Encrypt everything after the 8 byte header.
	counter := generateCounter(uint16(index&0xffff), index>>16, ssrc, c.sessionSalt)
	if err := xorBytesCTR(c.block, counter[:], dst[srtcpHeaderSize:len(decrypted)], decrypted[srtcpHeaderSize:]); err != nil {
		return nil, err
	}

	// Append the trailer: Encrypted flag | 31 bit index.
	binary.BigEndian.PutUint32(dst[len(decrypted):], index)
	dst[len(decrypted)] |= srtcpEncryptionFlag

	// The tag covers header, encrypted payload and trailer.
	authTag, err := generateAuthTag(c.sessionAuthKey, dst[:len(decrypted)+srtcpIndexSize], c.authTagLen)
	if err != nil {
		return nil, err
	}
	copy(dst[len(decrypted)+srtcpIndexSize:], authTag)

	return dst, nil
}

func (c *srtcpContext) decryptRTCP(dst, encrypted []byte, header *rtcp.Header) ([]byte, error) {
	if len(encrypted) < srtcpHeaderSize+srtcpIndexSize+c.authTagLen {
		return nil, errTooShortRTCP
	}

	// Authenticate before inspecting the trailer or touching replay
	// state.
	actualTag := encrypted[len(encrypted)-c.authTagLen:]
	if err := verifyAuthTag(c.sessionAuthKey, encrypted[:len(encrypted)-c.authTagLen], actualTag); err != nil {
		return nil, err
	}

	if err := header.Unmarshal(encrypted); err != nil {
		return nil, err
	}

	tailOffset := len(encrypted) - (srtcpIndexSize + c.authTagLen)
	isEncrypted := encrypted[tailOffset]&srtcpEncryptionFlag != 0
	index := binary.BigEndian.Uint32(encrypted[tailOffset:]) &^ (1 << 31)
	ssrc := binary.BigEndian.Uint32(encrypted[4:8])

	c.mu.Lock()
	markAsValid, ok := c.getState(ssrc).replayDetector.Check(uint64(index))
	if !ok {
		c.mu.Unlock()

		return nil, &duplicatedError{Proto: "srtcp", SSRC: ssrc, Index: index}
	}
	markAsValid()
	c.mu.Unlock()

	dst = growBufferSize(dst, tailOffset)
	if !isSameBuffer(dst, encrypted) {
		copy(dst, encrypted[:srtcpHeaderSize])
	}

	if !isEncrypted {
		// Authenticated-only packet: strip the trailer and tag and
		// return the payload as-is.
		if !isSameBuffer(dst, encrypted) {
			copy(dst[srtcpHeaderSize:], encrypted[srtcpHeaderSize:tailOffset])
		}

		return dst, nil
	}

	counter := generateCounter(uint16(index&0xffff), index>>16, ssrc, c.sessionSalt)
	if err := xorBytesCTR(c.block, counter[:], dst[srtcpHeaderSize:], encrypted[srtcpHeaderSize:tailOffset]); err != nil {
		return nil, err
	}

	return dst, nil
}

// DecryptRTCP decrypts an SRTCP packet, writing to the dst buffer
// provided. If dst is too small a new one is allocated. If a
// rtcp.Header is provided it is populated from the packet.
func (c *Context) DecryptRTCP(dst, encrypted []byte, header *rtcp.Header) ([]byte, error) {
	if header == nil {
		header = &rtcp.Header{}
	}

	return c.srtcp.decryptRTCP(dst, encrypted, header)
}

// EncryptRTCP encrypts a plaintext RTCP packet, writing to the dst
// buffer provided. If dst does not have capacity for the packet plus
// the trailer and auth tag a new buffer is allocated. If a rtcp.Header
// is provided it is populated from the plaintext.
func (c *Context) EncryptRTCP(dst, decrypted []byte, header *rtcp.Header) ([]byte, error) {
	if header == nil {
		header = &rtcp.Header{}
	}

	return c.srtcp.encryptRTCP(dst, decrypted, header)
}
