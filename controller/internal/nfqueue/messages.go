package nfqueue

import (
	"encoding/binary"
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/pkg/errors"
	nferrors "go.aporeto.io/nfregex/utils/errors"
	"golang.org/x/sys/unix"
)

// Message is one packet delivered by the kernel.
type Message struct {
	// ID identifies the packet in the verdict.
	ID         uint32
	HWProtocol uint16
	Hook       uint8
	Mark       uint32
	InDev      uint32
	OutDev     uint32
	// CapLen is the original length when the payload was truncated.
	CapLen  uint32
	SkbInfo uint32
	// Payload is the IP datagram.
	Payload []byte
}

// Decision is the verdict value.
type Decision uint32

// Verdict values understood by the kernel.
const (
	Drop   Decision = 0
	Accept Decision = 1
)

func (d Decision) String() string {

	switch d {
	case Drop:
		return "drop"
	case Accept:
		return "accept"
	default:
		return fmt.Sprintf("verdict(%d)", uint32(d))
	}
}

// Verdict is the decision for one packet.
type Verdict struct {
	ID       uint32
	Decision Decision
	// Payload replaces the packet when not nil.
	Payload []byte
	// ConnMark is set on the packet's connection when not zero.
	ConnMark uint32
}

func msgType(t uint16) netlink.HeaderType {
	return netlink.HeaderType(nfnlSubsysQueue<<8 | t)
}

func nfgenmsg(family uint8, queue uint16) []byte {

	b := make([]byte, nfgenmsgLen)
	b[0] = family
	b[1] = nfnetlinkV0
	binary.BigEndian.PutUint16(b[2:4], queue)

	return b
}

func newEncoder() *netlink.AttributeEncoder {

	ae := netlink.NewAttributeEncoder()
	ae.ByteOrder = binary.BigEndian

	return ae
}

func request(t uint16, family uint8, queue uint16, ae *netlink.AttributeEncoder) (netlink.Message, error) {

	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}

	return netlink.Message{
		Header: netlink.Header{
			Type:  msgType(t),
			Flags: netlink.Request,
		},
		Data: append(nfgenmsg(family, queue), attrs...),
	}, nil
}

// encodeCommand builds a config message carrying a single command.
func encodeCommand(queue uint16, cmd uint8) (netlink.Message, error) {

	ae := newEncoder()

	b := make([]byte, 4)
	b[0] = cmd
	binary.BigEndian.PutUint16(b[2:4], unix.AF_INET)
	ae.Bytes(nfqaCfgCmd, b)

	return request(nfqnlMsgConfig, unix.AF_UNSPEC, queue, ae)
}

// encodeParams builds the config message for copy mode, queue length and
// flags.
func encodeParams(queue uint16, cfg *Config) (netlink.Message, error) {

	ae := newEncoder()

	params := make([]byte, 5)
	binary.BigEndian.PutUint32(params[0:4], cfg.MaxPacketLen)
	params[4] = nfqnlCopyPacket
	ae.Bytes(nfqaCfgParams, params)

	ae.Uint32(nfqaCfgQueueMaxLen, cfg.MaxQueueLen)

	flags := uint32(nfqaCfgFGSO)
	if cfg.FailOpen {
		flags |= nfqaCfgFFailOpen
	}
	ae.Uint32(nfqaCfgFlags, flags)
	ae.Uint32(nfqaCfgMask, nfqaCfgFGSO|nfqaCfgFFailOpen)

	return request(nfqnlMsgConfig, unix.AF_UNSPEC, queue, ae)
}

// encodeVerdict builds a verdict message.
func encodeVerdict(queue uint16, v *Verdict) (netlink.Message, error) {

	ae := newEncoder()

	hdr := make([]byte, 8)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(v.Decision))
	binary.BigEndian.PutUint32(hdr[4:8], v.ID)
	ae.Bytes(nfqaVerdictHdr, hdr)

	if v.Payload != nil {
		ae.Bytes(nfqaPayload, v.Payload)
	}

	if v.ConnMark != 0 {
		ae.Nested(nfqaCt, func(nae *netlink.AttributeEncoder) error {
			nae.ByteOrder = binary.BigEndian
			nae.Uint32(ctaMark, v.ConnMark)
			return nil
		})
	}

	return request(nfqnlMsgVerdict, unix.AF_UNSPEC, queue, ae)
}

// decodeMessage decodes a packet message. Messages of other types are
// reported with ok set to false.
func decodeMessage(m netlink.Message) (msg *Message, ok bool, err error) {

	if m.Header.Type != msgType(nfqnlMsgPacket) {
		return nil, false, nil
	}

	if len(m.Data) < nfgenmsgLen {
		return nil, false, nferrors.NewError(nferrors.ProtocolDecodeError, "packet message", "short nfgenmsg header")
	}

	ad, err := netlink.NewAttributeDecoder(m.Data[nfgenmsgLen:])
	if err != nil {
		return nil, false, nferrors.WrapError(nferrors.ProtocolDecodeError, "packet message", err)
	}
	ad.ByteOrder = binary.BigEndian

	msg = &Message{}
	var header bool

	for ad.Next() {
		switch ad.Type() {
		case nfqaPacketHdr:
			b := ad.Bytes()
			if len(b) < packetHdrLen {
				return nil, false, nferrors.NewError(nferrors.ProtocolDecodeError, "packet message", "short packet header")
			}
			msg.ID = binary.BigEndian.Uint32(b[0:4])
			msg.HWProtocol = binary.BigEndian.Uint16(b[4:6])
			msg.Hook = b[6]
			header = true
		case nfqaMark:
			msg.Mark = ad.Uint32()
		case nfqaIfindexIndev:
			msg.InDev = ad.Uint32()
		case nfqaIfindexOutdev:
			msg.OutDev = ad.Uint32()
		case nfqaCapLen:
			msg.CapLen = ad.Uint32()
		case nfqaSkbInfo:
			msg.SkbInfo = ad.Uint32()
		case nfqaPayload:
			msg.Payload = ad.Bytes()
		}
	}

	if err := ad.Err(); err != nil {
		return nil, false, nferrors.WrapError(nferrors.ProtocolDecodeError, "packet message", err)
	}

	if !header {
		return nil, false, nferrors.WrapError(nferrors.ProtocolDecodeError, "packet message", errors.New("missing packet header"))
	}

	return msg, true, nil
}
