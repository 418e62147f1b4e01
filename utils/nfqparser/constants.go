package nfqparser

const (
	nfqFilePath = "/proc/net/netfilter/nfnetlink_queue"

	// number of columns before the optional ones added by newer kernels
	nfqMinFields = 8
)

// Field is a column of /proc/net/netfilter/nfnetlink_queue.
type Field int

// Fields
const (
	FieldQueueNum Field = iota
	FieldPeerPortID
	FieldQueueTotal
	FieldCopyMode
	FieldCopyRange
	FieldQueueDropped
	FieldUserDropped
	FieldIDSequence
)
