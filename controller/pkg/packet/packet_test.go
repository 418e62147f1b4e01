package packet

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	. "github.com/smartystreets/goconvey/convey"
	nferrors "go.aporeto.io/nfregex/utils/errors"
)

var (
	testSrcIPv4 = net.IP{10, 1, 1, 1}
	testDstIPv4 = net.IP{10, 1, 1, 2}
	testSrcIPv6 = net.ParseIP("2001:db8::1")
	testDstIPv6 = net.ParseIP("2001:db8::2")
)

func serialize(l ...gopacket.SerializableLayer) []byte {

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

func testIPv4(proto layers.IPProtocol) *layers.IPv4 {

	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Protocol: proto,
		SrcIP:    testSrcIPv4,
		DstIP:    testDstIPv4,
	}
}

func testTCP() *layers.TCP {

	return &layers.TCP{
		SrcPort: 40000,
		DstPort: 80,
		Seq:     1000,
		Ack:     2000,
		PSH:     true,
		ACK:     true,
		Window:  512,
	}
}

func testIPv4TCPPacket(payload []byte) []byte {

	ip := testIPv4(layers.IPProtocolTCP)
	tcp := testTCP()
	tcp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

	return serialize(ip, tcp, gopacket.Payload(payload))
}

func TestNewIPv4TCP(t *testing.T) {

	Convey("Given I have an IPv4 TCP datagram with a payload", t, func() {
		data := testIPv4TCPPacket([]byte("GET /evil HTTP/1.1"))

		Convey("When I decode it", func() {
			p, err := New(data)

			Convey("Then I should recover the 4-tuple and the payload", func() {
				So(err, ShouldBeNil)
				So(p.IPversion(), ShouldEqual, V4)
				So(p.L4Proto(), ShouldEqual, L4TCP)
				So(p.IPProto(), ShouldEqual, IPProtocolTCP)
				So(p.SourceAddress().Equal(testSrcIPv4), ShouldBeTrue)
				So(p.DestinationAddress().Equal(testDstIPv4), ShouldBeTrue)
				So(p.SourcePort(), ShouldEqual, 40000)
				So(p.DestPort(), ShouldEqual, 80)
				So(p.TCPSeqNum(), ShouldEqual, 1000)
				So(p.TCPAckNum(), ShouldEqual, 2000)
				So(p.TCPFlags(), ShouldEqual, TCPPshMask|TCPAckMask)
				So(string(p.Payload()), ShouldEqual, "GET /evil HTTP/1.1")
				So(p.HasPayload(), ShouldBeTrue)
				So(p.FlowString(), ShouldEqual, "10.1.1.1:40000->10.1.1.2:80")
			})

			Convey("Then the checksums of the source datagram should verify", func() {
				So(VerifyIPChecksum(data), ShouldBeTrue)
				So(VerifyTCPChecksum(data), ShouldBeTrue)
			})

			Convey("Then the string representation should carry the ports", func() {
				So(p.String(), ShouldContainSubstring, "srcport=40000")
				So(p.String(), ShouldContainSubstring, "dstport=80")
			})
		})
	})

	Convey("Given I have an IPv4 TCP datagram without a payload", t, func() {
		p, err := New(testIPv4TCPPacket(nil))

		Convey("Then the packet should have no payload", func() {
			So(err, ShouldBeNil)
			So(p.L4Proto(), ShouldEqual, L4TCP)
			So(p.HasPayload(), ShouldBeFalse)
		})
	})
}

func TestConvertToFinAck(t *testing.T) {

	Convey("Given I have a decoded IPv4 TCP datagram", t, func() {
		data := testIPv4TCPPacket([]byte("evil payload"))
		original := append([]byte(nil), data...)
		p, err := New(data)
		So(err, ShouldBeNil)

		Convey("When I convert it to a FIN/ACK", func() {
			finack, err := p.ConvertToFinAck()
			So(err, ShouldBeNil)

			reset, err := New(finack)
			So(err, ShouldBeNil)

			Convey("Then the flags should be exactly FIN and ACK", func() {
				So(reset.TCPFlags(), ShouldEqual, TCPFinMask|TCPAckMask)
			})

			Convey("Then the 4-tuple and sequence numbers should be unchanged", func() {
				So(reset.SourceAddress().Equal(p.SourceAddress()), ShouldBeTrue)
				So(reset.DestinationAddress().Equal(p.DestinationAddress()), ShouldBeTrue)
				So(reset.SourcePort(), ShouldEqual, p.SourcePort())
				So(reset.DestPort(), ShouldEqual, p.DestPort())
				So(reset.TCPSeqNum(), ShouldEqual, p.TCPSeqNum())
				So(reset.TCPAckNum(), ShouldEqual, p.TCPAckNum())
			})

			Convey("Then the payload should be empty and the checksums valid", func() {
				So(len(reset.Payload()), ShouldEqual, 0)
				So(len(finack), ShouldEqual, minIPv4HdrSize+minTCPHeaderLen)
				So(VerifyIPChecksum(finack), ShouldBeTrue)
				So(VerifyTCPChecksum(finack), ShouldBeTrue)
			})

			Convey("Then the original buffer should be untouched", func() {
				So(bytes.Equal(data, original), ShouldBeTrue)
				So(string(p.Payload()), ShouldEqual, "evil payload")
			})
		})
	})

	Convey("Given I have a UDP datagram", t, func() {
		ip := testIPv4(layers.IPProtocolUDP)
		udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
		udp.SetNetworkLayerForChecksum(ip) // nolint: errcheck
		p, err := New(serialize(ip, udp, gopacket.Payload([]byte("query"))))
		So(err, ShouldBeNil)

		Convey("Then converting it to a FIN/ACK should fail", func() {
			_, err := p.ConvertToFinAck()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNewIPv6UDP(t *testing.T) {

	Convey("Given I have an IPv6 UDP datagram", t, func() {
		ip := &layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolUDP,
			HopLimit:   64,
			SrcIP:      testSrcIPv6,
			DstIP:      testDstIPv6,
		}
		udp := &layers.UDP{SrcPort: 1234, DstPort: 4321}
		udp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

		p, err := New(serialize(ip, udp, gopacket.Payload([]byte("hello"))))

		Convey("Then I should recover the 4-tuple and the payload", func() {
			So(err, ShouldBeNil)
			So(p.IPversion(), ShouldEqual, V6)
			So(p.L4Proto(), ShouldEqual, L4UDP)
			So(p.SourceAddress().Equal(testSrcIPv6), ShouldBeTrue)
			So(p.DestinationAddress().Equal(testDstIPv6), ShouldBeTrue)
			So(p.SourcePort(), ShouldEqual, 1234)
			So(p.DestPort(), ShouldEqual, 4321)
			So(string(p.Payload()), ShouldEqual, "hello")
			So(p.String(), ShouldContainSubstring, "ver=6")
		})
	})

	Convey("Given I have an IPv6 TCP datagram", t, func() {
		ip := &layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolTCP,
			HopLimit:   64,
			SrcIP:      testSrcIPv6,
			DstIP:      testDstIPv6,
		}
		tcp := testTCP()
		tcp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

		p, err := New(serialize(ip, tcp, gopacket.Payload([]byte("evil"))))
		So(err, ShouldBeNil)

		Convey("Then the FIN/ACK should decode as IPv6 with FIN and ACK", func() {
			finack, err := p.ConvertToFinAck()
			So(err, ShouldBeNil)

			reset, err := New(finack)
			So(err, ShouldBeNil)
			So(reset.IPversion(), ShouldEqual, V6)
			So(reset.TCPFlags(), ShouldEqual, TCPFinMask|TCPAckMask)
			So(reset.SourceAddress().Equal(testSrcIPv6), ShouldBeTrue)
			So(len(reset.Payload()), ShouldEqual, 0)
		})
	})
}

func TestNewTunnelAndFragments(t *testing.T) {

	Convey("Given I have a TCP datagram tunneled in IPv4", t, func() {
		outer := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolIPv4,
			SrcIP:    net.IP{192, 168, 0, 1},
			DstIP:    net.IP{192, 168, 0, 2},
		}
		inner := testIPv4(layers.IPProtocolTCP)
		tcp := testTCP()
		tcp.SetNetworkLayerForChecksum(inner) // nolint: errcheck

		p, err := New(serialize(outer, inner, tcp, gopacket.Payload([]byte("tunneled"))))

		Convey("Then the inner transport header should be found", func() {
			So(err, ShouldBeNil)
			So(p.L4Proto(), ShouldEqual, L4TCP)
			So(p.SourceAddress().Equal(testSrcIPv4), ShouldBeTrue)
			So(string(p.Payload()), ShouldEqual, "tunneled")
		})

		Convey("Then the FIN/ACK should keep the tunnel", func() {
			finack, err := p.ConvertToFinAck()
			So(err, ShouldBeNil)
			So(VerifyIPChecksum(finack), ShouldBeTrue)

			reset, err := New(finack)
			So(err, ShouldBeNil)
			So(reset.TCPFlags(), ShouldEqual, TCPFinMask|TCPAckMask)
			So(reset.SourceAddress().Equal(testSrcIPv4), ShouldBeTrue)
		})
	})

	Convey("Given I have the first fragment of a TCP datagram", t, func() {
		ip := testIPv4(layers.IPProtocolTCP)
		ip.Flags = layers.IPv4MoreFragments
		tcp := testTCP()
		tcp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

		p, err := New(serialize(ip, tcp, gopacket.Payload([]byte("evil"))))

		Convey("Then no transport payload should be reported", func() {
			So(err, ShouldBeNil)
			So(p.L4Proto(), ShouldEqual, L4Other)
			So(p.HasPayload(), ShouldBeFalse)
			So(p.IPProto(), ShouldEqual, IPProtocolTCP)
		})
	})

	Convey("Given I have an ICMP datagram", t, func() {
		ip := testIPv4(layers.IPProtocolICMPv4)
		icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

		p, err := New(serialize(ip, icmp))

		Convey("Then the packet should be reported as other", func() {
			So(err, ShouldBeNil)
			So(p.L4Proto(), ShouldEqual, L4Other)
			So(len(p.Payload()), ShouldEqual, 0)
		})
	})
}

func TestNewInvalid(t *testing.T) {

	Convey("Given I have an empty buffer", t, func() {
		_, err := New(nil)

		Convey("Then I should get a decode error", func() {
			So(nferrors.Is(err, nferrors.ProtocolDecodeError), ShouldBeTrue)
		})
	})

	Convey("Given I have a buffer with an unknown version", t, func() {
		_, err := New([]byte{0x15, 0x00, 0x00, 0x14})

		Convey("Then I should get a decode error", func() {
			So(nferrors.Is(err, nferrors.ProtocolDecodeError), ShouldBeTrue)
		})
	})

	Convey("Given I have a truncated IPv4 header", t, func() {
		_, err := New([]byte{0x45, 0x00, 0x00, 0x28, 0x00, 0x00})

		Convey("Then I should get a decode error", func() {
			So(nferrors.Is(err, nferrors.ProtocolDecodeError), ShouldBeTrue)
		})
	})

	Convey("Given I have a truncated IPv6 header", t, func() {
		_, err := New([]byte{0x60, 0x00, 0x00, 0x00, 0x00, 0x08, 0x06, 0x40})

		Convey("Then I should get a decode error", func() {
			So(nferrors.Is(err, nferrors.ProtocolDecodeError), ShouldBeTrue)
		})
	})

	Convey("Given I have garbage in the checksum helpers", t, func() {
		Convey("Then verification should fail", func() {
			So(VerifyIPChecksum([]byte{0x45}), ShouldBeFalse)
			So(VerifyTCPChecksum([]byte{0x60, 0x00}), ShouldBeFalse)
		})
	})
}
