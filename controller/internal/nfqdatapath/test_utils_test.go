package nfqdatapath

import (
	"encoding/hex"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"go.aporeto.io/nfregex/controller/pkg/rules"
)

func testSerialize(l ...gopacket.SerializableLayer) []byte {

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
		Protocol: proto,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
	}
}

func testTCPPacket(payload string) []byte {

	ip := testIPv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 40000,
		DstPort: 80,
		Seq:     1000,
		Ack:     2000,
		ACK:     true,
		PSH:     true,
		Window:  1024,
	}
	tcp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

	return testSerialize(ip, tcp, gopacket.Payload(payload))
}

func testUDPPacket(payload string) []byte {

	ip := testIPv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	udp.SetNetworkLayerForChecksum(ip) // nolint: errcheck

	return testSerialize(ip, udp, gopacket.Payload(payload))
}

func testToken(prefix, pattern string) string {
	return prefix + hex.EncodeToString([]byte(pattern))
}

func testStore(tokens ...string) *rules.Store {

	compiler := rules.NewRegexpCompiler(16)
	line := ""
	for _, t := range tokens {
		line += t + " "
	}

	set, errs := rules.ParseLine(line, compiler)
	if len(errs) != 0 {
		panic(errs[0])
	}

	s := rules.NewStore()
	s.Replace(set)

	return s
}
