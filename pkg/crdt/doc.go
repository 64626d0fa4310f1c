/*
Package crdt implements a state-based Last-Writer-Wins element dictionary
(LWW-Element-Dictionary) and the grow-only map it is built from.

A Dictionary is two GrowMaps: one recording the latest add per key, one
recording the latest remove (tombstone) per key. Nothing is ever deleted;
whether a key is visible is derived on every lookup from the timestamps of its
latest add and latest remove. Merging two replicas merges the add maps and
the remove maps independently, which makes Merge idempotent, commutative and
associative as long as no two writes to the same key share a timestamp while
carrying different values.

CAUTION! Consider these two requirements:
  - Neither Dictionary nor GrowMap synchronizes access. Callers sharing one
    between goroutines must serialize every method call, e.g. behind a mutex
    as package replica does.
  - Timestamps are supplied by the caller or by a Clock. Replicas expected to
    converge on exact timestamp ties must guarantee that concurrent writes to
    the same key never carry equal timestamps (for example by folding a
    replica identifier into the low bits), otherwise merge order can decide
    which of two tied values survives.
*/
package crdt
