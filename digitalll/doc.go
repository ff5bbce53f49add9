// Package digitalll implements sample-accurate, timestamp-driven framing
// and scheduling for software-defined radio sample streams: a stream-tag
// time model (Timestamp, StreamTag, ContextTagManager) and the stream
// operators that consume and re-stamp it (TimeTagShifter, SlotSelector,
// SymbolRecovery, FramerSink, InputSelector).
//
// The core types are deliberately free of any host runtime: an operator
// is anything satisfying StreamOperator, and callers drive Work calls the
// way a block-graph scheduler would. Hardware and network concerns (GPS
// clock references, rig control, service discovery) live in the sibling
// adapters packages and depend on digitalll, never the other way around.
package digitalll
