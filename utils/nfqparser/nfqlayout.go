package nfqparser

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// NFQLayout is the layout of /proc/net/netfilter/nfnetlink_queue
type NFQLayout struct {
	QueueNum string
	// process ID of software listening to the queue
	PeerPortID string
	// current number of packets waiting in the queue
	QueueTotal string
	// 0 and 1 only message only provide meta data. If 2, the message provides a part of packet of size copy range.
	CopyMode string
	// length of packet data to put in message
	CopyRange string
	// number of packets dropped because queue was full
	QueueDropped string
	// number of packets dropped because netlink message could not be sent to userspace.
	// If this counter is not zero, try to increase netlink buffer size. On the application side,
	// you will see gap in packet id if netlink message are lost.
	UserDropped string
	// packet id of last packet
	IDSequence string
}

// String returns string representation of particular queue
func (n *NFQLayout) String() string {

	if n == nil {
		return ""
	}

	return fmt.Sprintf("%v", *n)
}

// Drops returns the number of packets the kernel dropped because the queue
// was full and because they could not be delivered to the socket.
func (n *NFQLayout) Drops() (queueDropped uint64, userDropped uint64, err error) {

	if n == nil {
		return 0, 0, errors.New("no queue data")
	}

	if queueDropped, err = strconv.ParseUint(n.QueueDropped, 10, 64); err != nil {
		return 0, 0, errors.Wrapf(err, "invalid queue dropped counter for queue %s", n.QueueNum)
	}

	if userDropped, err = strconv.ParseUint(n.UserDropped, 10, 64); err != nil {
		return 0, 0, errors.Wrapf(err, "invalid user dropped counter for queue %s", n.QueueNum)
	}

	return queueDropped, userDropped, nil
}
