package tcp

// Stats is a read-only counter set summarizing one connection's traffic,
// adapted from the teacher's tcp_conn_tracker idiom of summarizing a TCP
// connection's lifetime — rewritten here as simple tick-driven counters
// instead of a goroutine/timer-based collector, since the core never
// blocks or reads the wall clock. Nothing in the core's own control flow
// consults these fields; they exist purely for observability.
type Stats struct {
	SegmentsSent     uint64
	SegmentsReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
	Retransmissions  uint64
}
