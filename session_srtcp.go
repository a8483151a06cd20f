package srtp

import (
	"net"

	"github.com/pion/logging"
	"github.com/pion/rtcp"
)

// SessionSRTCP is the RTCP companion of SessionSRTP: it protects
// outbound control packets and unprotects and demuxes inbound ones by
// their destination SSRCs.
type SessionSRTCP struct {
	session
	writeStream *WriteStreamSRTCP
}

// NewSessionSRTCP creates an SRTCP session using conn as the underlying
// transport.
func NewSessionSRTCP(conn net.Conn, config *Config) (*SessionSRTCP, error) {
	if config == nil {
		return nil, errNoConfig
	} else if conn == nil {
		return nil, errNoConn
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	s := &SessionSRTCP{
		session: session{
			nextConn:     conn,
			localOptions: config.LocalOptions,
			remoteOptions: append(
				[]ContextOption{
					SRTCPReplayProtection(defaultReplayProtectionWindow),
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
	s.writeStream = &WriteStreamSRTCP{s}

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
func (s *SessionSRTCP) OpenWriteStream() (*WriteStreamSRTCP, error) {
	return s.writeStream, nil
}

// OpenReadStream opens a read stream for the given SSRC, it can be used
// if the SSRC is known upfront.
func (s *SessionSRTCP) OpenReadStream(ssrc uint32) (*ReadStreamSRTCP, error) {
	r, _ := s.session.getOrCreateReadStream(ssrc, s, newReadStreamSRTCP)

	if readStream, ok := r.(*ReadStreamSRTCP); ok {
		return readStream, nil
	}

	return nil, errFailedTypeAssertion
}

// AcceptStream returns a stream to handle RTCP for a single SSRC.
func (s *SessionSRTCP) AcceptStream() (*ReadStreamSRTCP, uint32, error) {
	stream, ok := <-s.newStream
	if !ok {
		return nil, 0, errStreamAlreadyClosed
	}

	readStream, ok := stream.(*ReadStreamSRTCP)
	if !ok {
		return nil, 0, errFailedTypeAssertion
	}

	return readStream, stream.GetSSRC(), nil
}

// Close ends the session.
func (s *SessionSRTCP) Close() error {
	return s.session.close()
}

func (s *SessionSRTCP) write(buf []byte) (int, error) {
	select {
	case <-s.session.started:
	default:
		return 0, errSessionNotStarted
	}

	encrypted, err := s.localContext.EncryptRTCP(nil, buf, nil)
	if err != nil {
		return 0, err
	}

	return s.session.nextConn.Write(encrypted)
}

func (s *SessionSRTCP) decrypt(buf []byte) error {
	decrypted, err := s.remoteContext.DecryptRTCP(nil, buf, nil)
	if err != nil {
		return err
	}

	pkt, err := rtcp.Unmarshal(decrypted)
	if err != nil {
		return err
	}

	for _, p := range pkt {
		for _, ssrc := range p.DestinationSSRC() {
			r, isNew := s.session.getOrCreateReadStream(ssrc, s, newReadStreamSRTCP)
			if r == nil {
				return nil // Session is closed
			} else if isNew {
				s.session.newStream <- r // Notify AcceptStream
			}

			readStream, ok := r.(*ReadStreamSRTCP)
			if !ok {
				return errFailedTypeAssertion
			}

			if _, err = readStream.write(decrypted); err != nil {
				return err
			}
		}
	}

	return nil
}
