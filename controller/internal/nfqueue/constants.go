package nfqueue

// nfnetlink framing
const (
	nfnetlinkV0     = 0
	nfnlSubsysQueue = 3
	nfgenmsgLen     = 4
)

// nfnetlink_queue message types
const (
	nfqnlMsgPacket  = 0
	nfqnlMsgVerdict = 1
	nfqnlMsgConfig  = 2
)

// config commands
const (
	nfqnlCfgCmdNone   = 0
	nfqnlCfgCmdBind   = 1
	nfqnlCfgCmdUnbind = 2
)

// config attributes
const (
	nfqaCfgCmd         = 1
	nfqaCfgParams      = 2
	nfqaCfgQueueMaxLen = 3
	nfqaCfgMask        = 4
	nfqaCfgFlags       = 5
)

// copy modes
const (
	nfqnlCopyPacket = 2
)

// config flags
const (
	nfqaCfgFFailOpen = 1 << 0
	nfqaCfgFGSO      = 1 << 2
)

// packet and verdict attributes
const (
	nfqaPacketHdr     = 1
	nfqaVerdictHdr    = 2
	nfqaMark          = 3
	nfqaIfindexIndev  = 4
	nfqaIfindexOutdev = 5
	nfqaPayload       = 10
	nfqaCt            = 11
	nfqaCapLen        = 13
	nfqaSkbInfo       = 14
)

// conntrack attributes nested in nfqaCt
const (
	ctaMark = 8
)

// packet header layout: id be32, hw_protocol be16, hook u8
const (
	packetHdrLen = 7
)

// errnoNotSupported is the kernel internal ENOTSUPP returned for an
// unknown config command on a queue owned by the caller.
const errnoNotSupported = 524

// Defaults for the queue configuration.
const (
	// DefaultMaxPacketLen is the number of bytes of each packet copied to userspace.
	DefaultMaxPacketLen = 0xffff
	// DefaultMaxQueueLen is the kernel queue length.
	DefaultMaxQueueLen = 500
)
