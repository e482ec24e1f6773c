// Package ring implements weighted consistent hashing for request routing.
//
// Each node (a Hashable) owns a number of ring points proportional to its
// weight. A Ring is an immutable, globally sorted merge of those points;
// lookups hash the request key, binary search the ring and walk it forward
// collecting distinct owners until the dispersion limit is reached. Because a
// node's points depend only on its own identity and weight, changing one
// node's weight moves only the keys that land on the points it gained or lost.
//
// Rings are never mutated after construction, so any number of goroutines may
// select from the same Ring concurrently.
package ring
