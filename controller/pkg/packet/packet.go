package packet

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	nferrors "go.aporeto.io/nfregex/utils/errors"
)

// Packet is a decoded IP datagram as delivered by the kernel queue.
type Packet struct {
	// Buffer is the raw datagram. It is not modified by this package.
	Buffer []byte

	ipVersion IPver
	l4        L4Proto

	decoded gopacket.Packet
	// stack holds every decoded layer up to and including the transport header
	stack []gopacket.Layer
	// network is the IP layer directly enclosing the transport header
	network gopacket.NetworkLayer
	tcp     *layers.TCP
	udp     *layers.UDP

	sourceAddress      net.IP
	destinationAddress net.IP
	sourcePort         uint16
	destinationPort    uint16
	payload            []byte
}

// New decodes a raw IPv4 or IPv6 datagram. The version is taken from the
// first nibble. Tunnels and extension headers are walked until the first
// TCP or UDP header. When none is found the packet is returned with L4Other
// and no payload. An error is returned only when the outer IP header itself
// cannot be decoded.
func New(bytes []byte) (*Packet, error) {

	if len(bytes) == 0 {
		return nil, nferrors.NewError(nferrors.ProtocolDecodeError, "packet", "empty datagram")
	}

	p := &Packet{Buffer: bytes}

	var first gopacket.LayerType
	switch bytes[ipv4HdrLenPos] & ipVersionMask {
	case ipVersion4:
		p.ipVersion = V4
		first = layers.LayerTypeIPv4
	case ipVersion6:
		p.ipVersion = V6
		first = layers.LayerTypeIPv6
	default:
		return nil, nferrors.NewError(nferrors.ProtocolDecodeError, "packet", "unknown ip version")
	}

	// gopacket keeps a partially decoded outer header as the network layer,
	// so the outer header is checked on its own first.
	if err := decodeOuter(first, bytes); err != nil {
		return nil, nferrors.WrapError(nferrors.ProtocolDecodeError, "packet", err)
	}

	p.decoded = gopacket.NewPacket(bytes, first, gopacket.DecodeOptions{NoCopy: true})
	if p.decoded.NetworkLayer() == nil {
		return nil, nferrors.WrapError(nferrors.ProtocolDecodeError, "packet", errors.New("no network layer"))
	}

	p.locateTransport()

	return p, nil
}

func decodeOuter(first gopacket.LayerType, bytes []byte) error {

	if first == layers.LayerTypeIPv4 {
		return (&layers.IPv4{}).DecodeFromBytes(bytes, gopacket.NilDecodeFeedback)
	}

	return (&layers.IPv6{}).DecodeFromBytes(bytes, gopacket.NilDecodeFeedback)
}

// locateTransport finds the first transport header and the IP header that
// carries it.
func (p *Packet) locateTransport() {

	for _, l := range p.decoded.Layers() {
		p.stack = append(p.stack, l)

		switch layer := l.(type) {
		case *layers.IPv4:
			p.network = layer
			p.sourceAddress = layer.SrcIP
			p.destinationAddress = layer.DstIP
		case *layers.IPv6:
			p.network = layer
			p.sourceAddress = layer.SrcIP
			p.destinationAddress = layer.DstIP
		case *layers.TCP:
			p.l4 = L4TCP
			p.tcp = layer
			p.sourcePort = uint16(layer.SrcPort)
			p.destinationPort = uint16(layer.DstPort)
			p.payload = layer.LayerPayload()
			return
		case *layers.UDP:
			p.l4 = L4UDP
			p.udp = layer
			p.sourcePort = uint16(layer.SrcPort)
			p.destinationPort = uint16(layer.DstPort)
			p.payload = layer.LayerPayload()
			return
		}
	}

	p.stack = nil
}

// IPversion returns the version of ip packet
func (p *Packet) IPversion() IPver {
	return p.ipVersion
}

// L4Proto returns the transport protocol of the packet.
func (p *Packet) L4Proto() L4Proto {
	return p.l4
}

// IPProto returns the protocol number of the transport header, or of the
// innermost IP header when no transport header was found.
func (p *Packet) IPProto() uint8 {

	switch p.l4 {
	case L4TCP:
		return IPProtocolTCP
	case L4UDP:
		return IPProtocolUDP
	}

	switch n := p.decoded.NetworkLayer().(type) {
	case *layers.IPv4:
		return uint8(n.Protocol)
	case *layers.IPv6:
		return uint8(n.NextHeader)
	}

	return 0
}

// Payload returns the transport payload. It aliases Buffer.
func (p *Packet) Payload() []byte {
	return p.payload
}

// HasPayload returns true when a transport header with a non empty payload
// was found.
func (p *Packet) HasPayload() bool {
	return p.l4 != L4Other && len(p.payload) > 0
}

// SourcePort returns the source port of packet.
func (p *Packet) SourcePort() uint16 {
	return p.sourcePort
}

// DestPort returns the destination port of packet.
func (p *Packet) DestPort() uint16 {
	return p.destinationPort
}

// SourceAddress returns the source IP.
func (p *Packet) SourceAddress() net.IP {
	return p.sourceAddress
}

// DestinationAddress returns the destination IP.
func (p *Packet) DestinationAddress() net.IP {
	return p.destinationAddress
}

// TCPSeqNum return tcp sequence number
func (p *Packet) TCPSeqNum() uint32 {

	if p.tcp == nil {
		return 0
	}

	return p.tcp.Seq
}

// TCPAckNum return tcp ack number
func (p *Packet) TCPAckNum() uint32 {

	if p.tcp == nil {
		return 0
	}

	return p.tcp.Ack
}

// TCPFlags returns the TCP flags as a bit mask.
func (p *Packet) TCPFlags() uint8 {

	if p.tcp == nil {
		return 0
	}

	var flags uint8
	if p.tcp.FIN {
		flags |= TCPFinMask
	}
	if p.tcp.SYN {
		flags |= TCPSynMask
	}
	if p.tcp.RST {
		flags |= TCPRstMask
	}
	if p.tcp.PSH {
		flags |= TCPPshMask
	}
	if p.tcp.ACK {
		flags |= TCPAckMask
	}

	return flags
}

// ConvertToFinAck returns a new datagram on the same connection with the
// payload removed and the flags set to FIN/ACK. Sequence and ack numbers
// are kept so the peer accepts the segment as part of the live connection.
// Lengths and checksums of every enclosing header are recomputed.
// Buffer is not modified.
func (p *Packet) ConvertToFinAck() ([]byte, error) {

	if p.tcp == nil {
		return nil, errors.Errorf("fin/ack requested on %s packet", p.l4)
	}

	tcp := *p.tcp
	tcp.FIN = true
	tcp.ACK = true
	tcp.SYN = false
	tcp.RST = false
	tcp.PSH = false
	tcp.URG = false
	tcp.Urgent = 0
	tcp.Payload = nil
	if err := tcp.SetNetworkLayerForChecksum(p.network); err != nil {
		return nil, errors.Wrap(err, "unable to set checksum network layer")
	}

	var lastIPv6 *layers.IPv6
	serializable := make([]gopacket.SerializableLayer, 0, len(p.stack))
	for _, l := range p.stack[:len(p.stack)-1] {
		// hop-by-hop options are written by the IPv6 layer that owns them
		if hbh, ok := l.(*layers.IPv6HopByHop); ok && lastIPv6 != nil && lastIPv6.HopByHop == hbh {
			continue
		}
		if ip6, ok := l.(*layers.IPv6); ok {
			lastIPv6 = ip6
		}
		s, ok := l.(gopacket.SerializableLayer)
		if !ok {
			return nil, errors.Errorf("layer %s cannot be serialized", l.LayerType())
		}
		serializable = append(serializable, s)
	}
	serializable = append(serializable, &tcp)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, serializable...); err != nil {
		return nil, errors.Wrap(err, "unable to serialize fin/ack")
	}

	return buf.Bytes(), nil
}
