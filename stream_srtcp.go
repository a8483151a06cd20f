package srtp

import (
	"io"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/transport/v3/packetio"
)

// Limit the buffer size to 100KB.
const srtcpBufferSize = 100 * 1000

// ReadStreamSRTCP handles decrypted RTCP for a single SSRC.
type ReadStreamSRTCP struct {
	mu sync.Mutex

	isInited bool
	isClosed chan bool

	session *SessionSRTCP
	ssrc    uint32

	buffer io.ReadWriteCloser
}

func newReadStreamSRTCP() readStream {
	return &ReadStreamSRTCP{}
}

func (r *ReadStreamSRTCP) init(child streamSession, ssrc uint32) error {
	sessionSRTCP, ok := child.(*SessionSRTCP)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !ok {
		return errFailedTypeAssertion
	} else if r.isInited {
		return errStreamAlreadyInited
	}

	r.session = sessionSRTCP
	r.ssrc = ssrc
	r.isInited = true
	r.isClosed = make(chan bool)

	if r.session.bufferFactory != nil {
		r.buffer = r.session.bufferFactory(packetio.RTCPBufferPacket, ssrc)
	} else {
		buff := packetio.NewBuffer()
		buff.SetLimitSize(srtcpBufferSize)
		r.buffer = buff
	}

	return nil
}

func (r *ReadStreamSRTCP) write(buf []byte) (int, error) {
	n, err := r.buffer.Write(buf)
	if err == nil {
		return n, nil
	}

	// Silently drop data when the buffer is full.
	if err == packetio.ErrFull { //nolint:errorlint
		return len(buf), nil
	}

	return n, err
}

// Read reads and decrypts a full RTCP packet from the nextConn.
func (r *ReadStreamSRTCP) Read(buf []byte) (int, error) {
	return r.buffer.Read(buf)
}

// ReadRTCP reads and decrypts a full RTCP packet and its header from
// the nextConn.
func (r *ReadStreamSRTCP) ReadRTCP(buf []byte) (int, *rtcp.Header, error) {
	n, err := r.Read(buf)
	if err != nil {
		return 0, nil, err
	}

	header := &rtcp.Header{}
	if err := header.Unmarshal(buf[:n]); err != nil {
		return 0, nil, err
	}

	return n, header, nil
}

// SetReadDeadline sets the deadline for Read operations, if the
// underlying buffer supports it.
func (r *ReadStreamSRTCP) SetReadDeadline(t time.Time) error {
	if b, ok := r.buffer.(interface {
		SetReadDeadline(time.Time) error
	}); ok {
		return b.SetReadDeadline(t)
	}

	return nil
}

// Close removes the ReadStream from the session and cleans up any
// associated state.
func (r *ReadStreamSRTCP) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isInited {
		return errStreamNotInited
	}

	select {
	case <-r.isClosed:
		return errStreamAlreadyClosed
	default:
		close(r.isClosed)
		r.session.removeReadStream(r.ssrc)

		return r.buffer.Close()
	}
}

// GetSSRC returns the SSRC we are demuxing for.
func (r *ReadStreamSRTCP) GetSSRC() uint32 {
	return r.ssrc
}

// WriteStreamSRTCP is the write stream for a single session, used to
// encrypt outbound RTCP.
type WriteStreamSRTCP struct {
	session *SessionSRTCP
}

// Write encrypts and writes a full RTCP packet to the nextConn.
func (w *WriteStreamSRTCP) Write(b []byte) (int, error) {
	return w.session.write(b)
}
