// SPDX-License-Identifier: MIT

// Package scan holds the ticket scan validation workflow core: normalizing a
// ticket token from its three sources, classifying heterogeneous backend
// envelopes into a closed set of outcomes, and the single-flight guard that
// keeps at most one backend call in flight per console.
//
// Everything here is transport-agnostic. The backend package produces
// RawResult values, the render package consumes Outcome values.
package scan
