// Package compression implements contextual compression of retrieved chunks.
//
// Each chunk is sent to the language model together with the question; the
// model returns only the relevant passages. Chunks the model marks as
// irrelevant are dropped, and chunks for which it returns nothing are kept
// unchanged.
package compression
