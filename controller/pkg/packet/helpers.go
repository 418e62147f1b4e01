package packet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"
)

// Helper functions for the package, mainly for debugging and validation.

// FlowString returns the 4-tuple as "src:port->dst:port".
func (p *Packet) FlowString() string {

	return net.JoinHostPort(p.sourceAddress.String(), strconv.Itoa(int(p.sourcePort))) +
		"->" +
		net.JoinHostPort(p.destinationAddress.String(), strconv.Itoa(int(p.destinationPort)))
}

// String returns a string representation of fields contained in this packet.
func (p *Packet) String() string {

	var buf bytes.Buffer

	if p.ipVersion == V4 {
		header, err := ipv4.ParseHeader(p.Buffer)
		if err != nil {
			return "(error)"
		}
		buf.WriteString(header.String())
	} else {
		buf.WriteString("ver=6 src=")
		buf.WriteString(p.sourceAddress.String())
		buf.WriteString(" dst=")
		buf.WriteString(p.destinationAddress.String())
	}

	buf.WriteString(" l4=")
	buf.WriteString(p.l4.String())
	if p.l4 != L4Other {
		buf.WriteString(" srcport=")
		buf.WriteString(strconv.Itoa(int(p.sourcePort)))
		buf.WriteString(" dstport=")
		buf.WriteString(strconv.Itoa(int(p.destinationPort)))
		buf.WriteString(" data=")
		buf.WriteString(hex.EncodeToString(p.payload))
	}

	return buf.String()
}

// VerifyIPChecksum returns true if the IPv4 header checksum of the
// datagram is correct.
func VerifyIPChecksum(buffer []byte) bool {

	hdrLen, ok := ipv4HeaderLen(buffer)
	if !ok {
		return false
	}

	return checksum(buffer[:hdrLen]) == 0
}

// VerifyTCPChecksum returns true if the TCP checksum of an IPv4/TCP
// datagram is correct.
func VerifyTCPChecksum(buffer []byte) bool {

	hdrLen, ok := ipv4HeaderLen(buffer)
	if !ok || buffer[ipv4ProtoPos] != IPProtocolTCP {
		return false
	}

	totalLen := int(binary.BigEndian.Uint16(buffer[ipv4LengthPos : ipv4LengthPos+2]))
	if totalLen > len(buffer) || totalLen < hdrLen+minTCPHeaderLen {
		return false
	}
	segment := buffer[hdrLen:totalLen]

	// pseudo-header: source, destination, zero, protocol, tcp length
	buf := make([]byte, 12, 12+len(segment))
	copy(buf[0:4], buffer[ipv4SourceAddrPos:ipv4SourceAddrPos+4])
	copy(buf[4:8], buffer[ipv4DestAddrPos:ipv4DestAddrPos+4])
	buf[9] = IPProtocolTCP
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(segment)))
	buf = append(buf, segment...)

	return checksum(buf) == 0
}

func ipv4HeaderLen(buffer []byte) (int, bool) {

	if len(buffer) < minIPv4HdrSize || buffer[ipv4HdrLenPos]&ipVersionMask != ipVersion4 {
		return 0, false
	}

	hdrLen := int(buffer[ipv4HdrLenPos]&ipv4HdrLenMask) * 4
	if hdrLen < minIPv4HdrSize || hdrLen > len(buffer) {
		return 0, false
	}

	return hdrLen, true
}

// Computes a sum of 16 bit numbers
func checksumDelta(buf []byte) uint16 {

	sum := uint32(0)

	for ; len(buf) >= 2; buf = buf[2:] {
		sum += uint32(buf[0])<<8 | uint32(buf[1])
	}
	if len(buf) > 0 {
		sum += uint32(buf[0]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(sum)
}

// Computes a checksum over the given slice.
func checksum(buf []byte) uint16 {

	sum := checksumDelta(buf)
	csum := ^sum
	return csum
}
