// Package transport implements the plain-UDP RTP I/O between the bridge and
// Janus's AudioBridge/VideoRoom plain-RTP participants: no DTLS/SRTP, just a
// bound UDP socket per direction (with the sender able to share the
// receiver's socket so outbound packets appear to come from the same port
// Janus was told to expect them from).
package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/rtpcodec"
)

// PacketHandler is invoked for every datagram received, after RTP parsing.
// addr is the packet's source so callers can implement ignore-source-port
// filtering themselves if they need addr-level detail beyond Receiver's
// built-in filter.
type PacketHandler func(pkt rtpcodec.Packet, addr *net.UDPAddr)

// Receiver binds a local UDP socket and dispatches parsed RTP packets to a
// callback on its own read goroutine.
type Receiver struct {
	log *zap.Logger

	conn  *net.UDPConn
	onPkt PacketHandler

	ignoreSourcePort atomic.Int32 // 0 means "no filter"

	mu      sync.Mutex
	running bool
	done    chan struct{}

	PacketsReceived atomic.Uint64
	BytesReceived   atomic.Uint64
}

// NewReceiver constructs a Receiver; Start binds it to an address.
func NewReceiver(log *zap.Logger, onPkt PacketHandler) *Receiver {
	return &Receiver{log: log, onPkt: onPkt}
}

// SetIgnoreSourcePort drops any datagram arriving from this UDP source port,
// used to filter Janus's own mixed-audio echo back to the sender's port.
func (r *Receiver) SetIgnoreSourcePort(port int) {
	r.ignoreSourcePort.Store(int32(port))
}

// Start binds the socket and begins the receive loop.
func (r *Receiver) Start(host string, port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	if host == "" {
		addr.IP = net.IPv4zero
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind rtp receiver %s:%d: %w", host, port, err)
	}

	r.conn = conn
	r.running = true
	r.done = make(chan struct{})

	r.log.Info("rtp receiver started", zap.String("addr", conn.LocalAddr().String()))

	go r.readLoop()
	return nil
}

func (r *Receiver) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
				r.log.Debug("rtp receiver read error", zap.Error(err))
				return
			}
		}

		if ignore := r.ignoreSourcePort.Load(); ignore != 0 && src.Port == int(ignore) {
			continue
		}

		pkt, ok := rtpcodec.Parse(buf[:n])
		if !ok {
			continue
		}

		r.PacketsReceived.Add(1)
		r.BytesReceived.Add(uint64(n))

		if r.onPkt != nil {
			r.onPkt(pkt, src)
		}
	}
}

// SendTo writes raw bytes out through this receiver's bound socket, letting
// a Sender reuse the same local port it received on — Janus plain-RTP
// participants require outbound packets to originate from the registered
// port.
func (r *Receiver) SendTo(data []byte, addr *net.UDPAddr) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rtp receiver not started")
	}
	_, err := conn.WriteToUDP(data, addr)
	return err
}

// Stop closes the socket and stops the read loop.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.running = false
	close(r.done)
	err := r.conn.Close()
	r.log.Info("rtp receiver stopped",
		zap.Uint64("packets_received", r.PacketsReceived.Load()),
		zap.Uint64("bytes_received", r.BytesReceived.Load()))
	return err
}

// Sender builds and transmits RTP packets to a fixed destination. It either
// owns its own UDP socket or reuses a Receiver's via ShareSocket.
type Sender struct {
	log *zap.Logger

	dest    *net.UDPAddr
	builder *rtpcodec.Builder

	ownConn *net.UDPConn
	shared  *Receiver

	PacketsSent atomic.Uint64
	BytesSent   atomic.Uint64
}

// NewSender constructs a Sender targeting host:port with the given SSRC,
// RTP payload type, and clock rate.
func NewSender(log *zap.Logger, host string, port int, ssrc uint32, payloadType uint8, clockRate uint32) *Sender {
	return &Sender{
		log:     log,
		dest:    &net.UDPAddr{IP: net.ParseIP(host), Port: port},
		builder: rtpcodec.NewBuilder(ssrc, payloadType, clockRate),
	}
}

// ShareSocket makes this Sender transmit through an already-bound Receiver's
// socket instead of opening its own, so Janus sees requests and replies on
// the same local port.
func (s *Sender) ShareSocket(r *Receiver) {
	s.shared = r
}

// Start opens a dedicated socket unless ShareSocket has already been called.
func (s *Sender) Start() error {
	if s.shared != nil {
		return nil
	}
	conn, err := net.DialUDP("udp", nil, s.dest)
	if err != nil {
		return fmt.Errorf("dial rtp sender %s: %w", s.dest, err)
	}
	s.ownConn = conn
	s.log.Info("rtp sender started", zap.String("dest", s.dest.String()))
	return nil
}

// Send packetizes payload and transmits it, advancing sequence/timestamp
// state. marker should be true for the first packet of a new talkspurt.
func (s *Sender) Send(payload []byte, marker bool, samplesPerFrame uint32) error {
	pkt := s.builder.Next(payload, marker, samplesPerFrame)
	raw, err := pkt.Bytes()
	if err != nil {
		return err
	}

	if s.shared != nil {
		err = s.shared.SendTo(raw, s.dest)
	} else if s.ownConn != nil {
		_, err = s.ownConn.Write(raw)
	} else {
		return fmt.Errorf("rtp sender not started")
	}
	if err != nil {
		return fmt.Errorf("send rtp packet: %w", err)
	}

	s.PacketsSent.Add(1)
	s.BytesSent.Add(uint64(len(raw)))
	return nil
}

// Stop closes the sender's own socket, if it owns one.
func (s *Sender) Stop() error {
	if s.ownConn == nil {
		return nil
	}
	err := s.ownConn.Close()
	s.log.Info("rtp sender stopped",
		zap.Uint64("packets_sent", s.PacketsSent.Load()),
		zap.Uint64("bytes_sent", s.BytesSent.Load()))
	return err
}
