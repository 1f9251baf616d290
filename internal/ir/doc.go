// Package ir provides the value types shared by every tandem package.
//
// This package contains the instruction model, the replication message, the
// wire codec and canonical JSON helpers. All other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - Instructions and messages are immutable values; copies are structural
//   - Indices and lengths count runes, never bytes
//   - The wire shape uses camelCase keys shared with non-Go peers
//   - Logical counters only, never wall-clock timestamps
package ir
