package engine

import "time"

// now0 is a fixed timestamp for tests that don't care about ordering by
// wall-clock time, mirroring the teacher's ob.now override pattern.
func now0() time.Time { return time.Unix(0, 0) }
