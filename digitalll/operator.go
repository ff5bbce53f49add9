package digitalll

// StreamOperator is the contract every sample-to-sample component in this
// package exposes to whatever host runtime wires the pipeline together: a
// single Work entry point, matching the "gr_block::general_work" shape of
// the original blocks (see design note on the intrusive shared-pointer
// factory pattern) but owned by a single, clear Go owner rather than a
// reference-counted handle.
//
// T is the sample item type carried on the port; the original C++ blocks
// are parameterised on item_size bytes to work on any fixed-size sample,
// which Go generics express directly instead of a runtime byte count.
//
// Implementations never block and never return an error from Work: per
// spec.md's error-handling design, programmer and transient errors are
// logged and the affected slot/tag is skipped, not propagated as a Go
// error. Only constructors fail.
type StreamOperator[T any] interface {
	// Work consumes up to len(in) input items and writes up to len(out)
	// output items. The returned WorkResult reports how many items were
	// produced and how many input items were actually consumed, which
	// may differ from len(in) (back-pressure / progress-preservation)
	// or from the produced count (rate-changing blocks).
	Work(in []T, out []T, inTags []StreamTag) (WorkResult, []StreamTag)
}

// WorkResult reports how a single Work call advanced the stream.
type WorkResult struct {
	// Produced is the number of output items actually written.
	Produced int
	// Consumed is the number of input items actually consumed.
	Consumed int
}
