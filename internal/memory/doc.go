// Package memory keeps warm runs inside the container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
// when GOMEMLIMIT itself is not set. A [Monitor] samples heap usage and
// makes [Monitor.Wait] block once usage crosses the critical water mark,
// until it falls back below the high water mark. Decoding large sources is
// the main allocation in this program, so warm workers call Wait before
// each file.
package memory
