package nfqueue

import (
	"fmt"
	"sync"

	"github.com/mdlayher/netlink"
	"github.com/pkg/errors"
	nferrors "go.aporeto.io/nfregex/utils/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Config holds the parameters applied to every queue at bind time.
type Config struct {
	// MaxPacketLen is the copy range.
	MaxPacketLen uint32
	// MaxQueueLen is the number of packets the kernel keeps waiting.
	MaxQueueLen uint32
	// FailOpen makes the kernel accept packets when the queue is full.
	FailOpen bool
	// NetNS is a network namespace file descriptor. Zero is the current one.
	NetNS int
	// ReadBuffer is the socket receive buffer size. Zero keeps the default.
	ReadBuffer int
}

// dial is replaced in tests.
var dial = netlink.Dial

// Queue is a bound nfnetlink_queue.
type Queue struct {
	num  uint16
	conn *netlink.Conn

	closeOnce sync.Once
	closeErr  error
}

// Open binds queue num and configures it. The bind is verified with a
// NONE command: the kernel answers an unknown command on a queue owned by this
// socket with ENOTSUPP, and with another error when the queue belongs to
// someone else.
func Open(num uint16, cfg Config) (*Queue, error) {

	subject := fmt.Sprintf("queue %d", num)

	conn, err := dial(unix.NETLINK_NETFILTER, &netlink.Config{NetNS: cfg.NetNS})
	if err != nil {
		return nil, nferrors.WrapError(nferrors.KernelChannelError, subject, errors.Wrap(err, "unable to open netlink socket"))
	}

	q := &Queue{
		num:  num,
		conn: conn,
	}

	if err := q.bind(subject); err != nil {
		conn.Close() // nolint: errcheck
		return nil, err
	}

	if err := q.configure(subject, &cfg); err != nil {
		q.Close() // nolint: errcheck
		return nil, err
	}

	return q, nil
}

func (q *Queue) bind(subject string) error {

	if err := q.command(nfqnlCfgCmdBind); err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, subject, errors.Wrap(err, "unable to send bind"))
	}

	if err := q.command(nfqnlCfgCmdNone); err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, subject, errors.Wrap(err, "unable to send ownership check"))
	}

	_, err := q.conn.Receive()
	if err == nil {
		return nferrors.NewError(nferrors.QueueBindConflict, subject, "unexpected ownership check reply")
	}

	errno, ok := kernelErrno(err)
	switch {
	case !ok:
		return nferrors.WrapError(nferrors.KernelChannelError, subject, errors.Wrap(err, "unable to receive ownership check reply"))
	case errno != errnoNotSupported:
		return nferrors.WrapError(nferrors.QueueBindConflict, subject, err)
	}

	return nil
}

func (q *Queue) configure(subject string, cfg *Config) error {

	if cfg.MaxPacketLen == 0 {
		cfg.MaxPacketLen = DefaultMaxPacketLen
	}
	if cfg.MaxQueueLen == 0 {
		cfg.MaxQueueLen = DefaultMaxQueueLen
	}

	msg, err := encodeParams(q.num, cfg)
	if err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, subject, err)
	}

	if _, err := q.conn.Send(msg); err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, subject, errors.Wrap(err, "unable to send config"))
	}

	if err := q.conn.SetOption(netlink.NoENOBUFS, true); err != nil {
		zap.L().Warn("Unable to disable ENOBUFS on queue socket", zap.Uint16("queue", q.num), zap.Error(err))
	}

	if cfg.ReadBuffer > 0 {
		if err := q.conn.SetReadBuffer(cfg.ReadBuffer); err != nil {
			zap.L().Warn("Unable to set queue socket read buffer", zap.Uint16("queue", q.num), zap.Error(err))
		}
	}

	return nil
}

func (q *Queue) command(cmd uint8) error {

	msg, err := encodeCommand(q.num, cmd)
	if err != nil {
		return err
	}

	_, err = q.conn.Send(msg)
	return err
}

// Number implements Handle.
func (q *Queue) Number() uint16 {
	return q.num
}

// Receive implements Handle. Error replies from the kernel, such as a
// verdict for a packet it no longer holds, are logged and skipped.
func (q *Queue) Receive() ([]*Message, error) {

	msgs, err := q.conn.Receive()
	if err != nil {
		if errno, ok := kernelErrno(err); ok {
			zap.L().Warn("Kernel reported an error on queue",
				zap.Uint16("queue", q.num),
				zap.String("errno", errno.Error()),
			)
			return nil, nil
		}
		return nil, nferrors.WrapError(nferrors.KernelChannelError, fmt.Sprintf("queue %d", q.num), err)
	}

	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		msg, ok, err := decodeMessage(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, msg)
		}
	}

	return out, nil
}

// SetVerdict implements Handle.
func (q *Queue) SetVerdict(v *Verdict) error {

	msg, err := encodeVerdict(q.num, v)
	if err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, fmt.Sprintf("queue %d", q.num), err)
	}

	if _, err := q.conn.Send(msg); err != nil {
		return nferrors.WrapError(nferrors.KernelChannelError, fmt.Sprintf("queue %d", q.num), errors.Wrap(err, "unable to send verdict"))
	}

	return nil
}

// Close implements Handle. The unbind is best effort: closing the socket
// releases the queue anyway.
func (q *Queue) Close() error {

	q.closeOnce.Do(func() {
		if err := q.command(nfqnlCfgCmdUnbind); err != nil {
			zap.L().Debug("Unable to send unbind", zap.Uint16("queue", q.num), zap.Error(err))
		}
		q.closeErr = q.conn.Close()
	})

	return q.closeErr
}

// kernelErrno returns the errno of an error reply sent by the kernel.
// Socket level failures are not kernel replies.
func kernelErrno(err error) (unix.Errno, bool) {

	var oerr *netlink.OpError
	if !errors.As(err, &oerr) {
		return 0, false
	}

	errno, ok := oerr.Err.(unix.Errno)
	return errno, ok
}

// QueueOpener opens queues with a fixed configuration.
type QueueOpener struct {
	Config Config
}

// NewQueueOpener returns an Opener.
func NewQueueOpener(cfg Config) *QueueOpener {
	return &QueueOpener{Config: cfg}
}

// Open implements Opener.
func (o *QueueOpener) Open(num uint16) (Handle, error) {

	q, err := Open(num, o.Config)
	if err != nil {
		return nil, err
	}

	return q, nil
}
