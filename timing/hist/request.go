package hist

// Request is a memory request issued by a node. The directory never copies
// or frees requests; it only holds references while a request waits for a
// line or for its delivery cycle.
type Request struct {
	// ID uniquely identifies the request for tracing.
	ID string

	// Source is the requesting node.
	Source int

	// Addr is the requested address.
	Addr uint64

	// RemainingWait is managed by the owner of the request. The directory
	// does not read or modify it.
	RemainingWait uint64

	// IssueCycle is the cycle the request was first issued.
	IssueCycle uint64
}

// ResponseSink receives the requests that leave the directory.
type ResponseSink interface {
	// Deliver hands a filled request to its target node. It is called
	// exactly once for every admitted request that reaches its delivery
	// cycle while its line is still ready.
	Deliver(node int, req *Request)

	// Retry returns a request whose line was freed or repurposed before the
	// request could be served. The owner must issue it again as a fresh miss.
	Retry(req *Request)
}
