// Package engine runs a lazy sequence of RMLVO tuples through a compiler
// strategy on a bounded pool of workers.
//
// A feeder pulls tuples from the sequence in chunks and hands them to the
// workers. Each worker blocks on the external compilers for one tuple at a
// time. Finished invocations return to the coordinator in completion order,
// so printed results are not ordered. The coordinator reports each result,
// advances the progress indicator, records the result in an optional Sink and
// tracks whether anything failed.
//
// The artifact directory is created before any worker starts. Workers write
// artifacts to paths unique to their tuple, so no locking is needed.
package engine
