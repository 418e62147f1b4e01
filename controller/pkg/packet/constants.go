package packet

// IPver is the IP version of a packet.
type IPver int

const (
	// V4 is IPv4.
	V4 IPver = iota
	// V6 is IPv6.
	V6
)

func (v IPver) String() string {

	if v == V6 {
		return "ipv6"
	}

	return "ipv4"
}

// L4Proto is the transport protocol found in a packet.
type L4Proto int

const (
	// L4Other means no TCP or UDP header was found.
	L4Other L4Proto = iota
	// L4TCP is TCP.
	L4TCP
	// L4UDP is UDP.
	L4UDP
)

func (l L4Proto) String() string {

	switch l {
	case L4TCP:
		return "tcp"
	case L4UDP:
		return "udp"
	default:
		return "other"
	}
}

const (
	// minIPv4HdrSize is the size of an IPv4 header without options
	minIPv4HdrSize = 20
	// minTCPHeaderLen is the size of a TCP header without options
	minTCPHeaderLen = 20
)

// IPv4 header field position constants
const (
	// ipv4HdrLenPos is the location of version and IHL
	ipv4HdrLenPos = 0

	// ipv4LengthPos is location of IP (entire packet) length
	ipv4LengthPos = 2

	// ipv4ProtoPos is the location of the IP Protocol
	ipv4ProtoPos = 9

	// ipv4SourceAddrPos is location of source IP address
	ipv4SourceAddrPos = 12

	// ipv4DestAddrPos is location of destination IP address
	ipv4DestAddrPos = 16
)

// IP Protocol numbers
const (
	// IPProtocolTCP defines the constant for TCP protocol number
	IPProtocolTCP = 6

	// IPProtocolUDP defines the constant for UDP protocol number
	IPProtocolUDP = 17
)

// IP Header masks
const (
	ipv4HdrLenMask = 0xF

	ipVersionMask = 0xF0
	ipVersion4    = 0x40
	ipVersion6    = 0x60
)

// TCP flag masks
const (
	// TCPFinMask mask that identifies FIN packets
	TCPFinMask = 0x1

	// TCPSynMask is a mask for the TCP Syn flags
	TCPSynMask = 0x2

	// TCPRstMask mask that identifies RST packets
	TCPRstMask = 0x4

	// TCPPshMask = 0x8 mask that identifies PSH packets
	TCPPshMask = 0x8

	// TCPAckMask mask that identifies ACK packets
	TCPAckMask = 0x10
)
