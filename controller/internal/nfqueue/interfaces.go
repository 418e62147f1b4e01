package nfqueue

// Handle is a bound kernel packet queue.
type Handle interface {
	// Number returns the queue number.
	Number() uint16

	// Receive blocks until the kernel delivers one or more packets.
	Receive() ([]*Message, error)

	// SetVerdict sends a verdict for one packet.
	SetVerdict(v *Verdict) error

	// Close unbinds the queue and releases the socket.
	Close() error
}

// Opener binds queue numbers.
type Opener interface {
	// Open binds a queue. A number owned by another process fails with a
	// QueueBindConflict error.
	Open(num uint16) (Handle, error)
}
