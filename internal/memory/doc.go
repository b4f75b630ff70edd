// Package memory sets the runtime soft memory limit from the configured
// container limit and watches heap usage while images are decoded.
//
// [Configure] derives GOMEMLIMIT as a ratio of memory_limit unless GOMEMLIMIT
// is already set in the environment. A [Monitor] samples the heap every
// CheckInterval. Once usage crosses CriticalWaterMark it pauses, and
// [Monitor.WaitIfPaused] blocks callers until usage falls below
// HighWaterMark again. The rotator waits on it before every full decode.
package memory
