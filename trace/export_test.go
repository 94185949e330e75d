package trace

// CurrentSpanFrom exposes currentSpanFrom for testing.
var CurrentSpanFrom = currentSpanFrom
