package observability

import "go.opentelemetry.io/otel/attribute"

// Track, Group, GroupSequence, Frames, Broadcast, and Subscribers are
// the relay's span/event attribute vocabulary, kept as named
// constructors so call sites read as domain terms instead of raw
// attribute.KeyValue literals.

func Track(name string) attribute.KeyValue { return attribute.String("moq.track", name) }

func Group(id int64) attribute.KeyValue { return attribute.Int64("moq.group", id) }

// GroupSequence is an alias for Group: both identify the same group
// number, just named for the call site's vocabulary (current group vs.
// group at a point in the subgroup sequence).
func GroupSequence(id int64) attribute.KeyValue { return attribute.Int64("moq.group", id) }

func Frames(n int64) attribute.KeyValue { return attribute.Int64("moq.frames", n) }

func Broadcast(path string) attribute.KeyValue { return attribute.String("moq.broadcast", path) }

func Subscribers(n int64) attribute.KeyValue { return attribute.Int64("moq.subscribers", n) }

// Str and Num construct arbitrary string/int64 attributes for call
// sites that don't fit the named vocabulary above.
func Str(key, value string) attribute.KeyValue { return attribute.String(key, value) }

func Num(key string, value int64) attribute.KeyValue { return attribute.Int64(key, value) }
