package srtp

import (
	"net"

	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// SessionSRTP pairs a local (protect) and remote (unprotect) crypto
// context with a transport-supplied net.Conn: writes are encrypted
// before hitting the conn, reads are decrypted and demuxed into
// per-SSRC streams.
type SessionSRTP struct {
	session
	writeStream *WriteStreamSRTP
}

// NewSessionSRTP creates an SRTP session using conn as the underlying
// transport.
func NewSessionSRTP(conn net.Conn, config *Config) (*SessionSRTP, error) {
	if config == nil {
		return nil, errNoConfig
	} else if conn == nil {
		return nil, errNoConn
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	s := &SessionSRTP{
		session: session{
			nextConn:     conn,
			localOptions: config.LocalOptions,
			remoteOptions: append(
				[]ContextOption{
					SRTPReplayProtection(defaultReplayProtectionWindow),
				},
				config.RemoteOptions...,
			),
			readStreams:   map[uint32]readStream{},
			newStream:     make(chan readStream),
			started:       make(chan interface{}),
			closed:        make(chan interface{}),
			bufferFactory: config.BufferFactory,
			log:           loggerFactory.NewLogger("srtp"),
		},
	}
	s.writeStream = &WriteStreamSRTP{s}

	err := s.session.start(
		config.Keys.LocalMasterKey, config.Keys.LocalMasterSalt,
		config.Keys.RemoteMasterKey, config.Keys.RemoteMasterSalt,
		config.Profile,
		s,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// OpenWriteStream returns the global write stream for the Session.
func (s *SessionSRTP) OpenWriteStream() (*WriteStreamSRTP, error) {
	return s.writeStream, nil
}

// OpenReadStream opens a read stream for the given SSRC, it can be used
// if the SSRC is known upfront.
func (s *SessionSRTP) OpenReadStream(ssrc uint32) (*ReadStreamSRTP, error) {
	r, _ := s.session.getOrCreateReadStream(ssrc, s, newReadStreamSRTP)

	if readStream, ok := r.(*ReadStreamSRTP); ok {
		return readStream, nil
	}

	return nil, errFailedTypeAssertion
}

// AcceptStream returns a stream to handle RTP for a single SSRC.
func (s *SessionSRTP) AcceptStream() (*ReadStreamSRTP, uint32, error) {
	stream, ok := <-s.newStream
	if !ok {
		return nil, 0, errStreamAlreadyClosed
	}

	readStream, ok := stream.(*ReadStreamSRTP)
	if !ok {
		return nil, 0, errFailedTypeAssertion
	}

	return readStream, stream.GetSSRC(), nil
}

// Close ends the session.
func (s *SessionSRTP) Close() error {
	return s.session.close()
}

func (s *SessionSRTP) write(b []byte) (int, error) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(b); err != nil {
		return 0, err
	}

	return s.writeRTP(&packet.Header, packet.Payload)
}

func (s *SessionSRTP) writeRTP(header *rtp.Header, payload []byte) (int, error) {
	select {
	case <-s.session.started:
	default:
		return 0, errSessionNotStarted
	}

	headerRaw, err := header.Marshal()
	if err != nil {
		return 0, err
	}

	encrypted, err := s.localContext.EncryptRTP(nil, append(headerRaw, payload...), nil)
	if err != nil {
		return 0, err
	}

	return s.session.nextConn.Write(encrypted)
}

func (s *SessionSRTP) decrypt(buf []byte) error {
	decrypted, err := s.remoteContext.DecryptRTP(nil, buf, nil)
	if err != nil {
		return err
	}

	p := &rtp.Packet{}
	if err := p.Unmarshal(decrypted); err != nil {
		return err
	}

	r, isNew := s.session.getOrCreateReadStream(p.SSRC, s, newReadStreamSRTP)
	if r == nil {
		return nil // Session is closed
	} else if isNew {
		s.session.newStream <- r // Notify AcceptStream
	}

	readStream, ok := r.(*ReadStreamSRTP)
	if !ok {
		return errFailedTypeAssertion
	}

	_, err = readStream.write(decrypted)

	return err
}
