// Package clock implements a [Cache] using the CLOCK‑Pro+ replacement algorithm.
//
// It is the in-tree bounded backend of the association caches, used when
// neither otter nor golang-lru may be selected. The algorithm is
// single-threaded; callers serialize access.
//
// CLOCK‑Pro+ is an adaptive, scan‑resistant policy that balances recency
// and frequency by utilizing adaptive hot/cold targets and a bounded
// metadata "test" set. See the [2005 USENIX CLOCK-Pro paper] and the
// [CLOCK-PRO+ paper].
//
// Glossary and invariants:
//
//   - LIR: Low Inter-reference Recency (hot) page. Resident and protected from eviction.
//
//   - HIR: High Inter-reference Recency (cold) page. May be resident or nonresident.
//
//   - Test page: nonresident HIR page retained only as metadata to guide adaptation.
//
//   - hotCount + coldCount <= capacity.
//
//   - coldTarget ∈ [1, capacity/2], hotTarget = capacity - coldTarget.
//
//   - hotCount + coldCount + testCount ≤ 2 * capacity.
//
// Hands:
//
//   - hot scans until it finds an LIR with Referenced == false,
//     removing nonresident HIR pages it encounters.
//
//   - cold scans until it finds an unreferenced resident HIR to evict.
//
//   - test points to a test page when testCount > 0.
//
//   - lru is the tail of the recency stack.
//
// [Cache.Remove] is an extension to the published algorithm. It unlinks a
// page regardless of its state and advances any hand resting on it.
// A later miss on a key whose test page survived a removal while the
// cache is below capacity discards that history instead of adapting.
//
// [2005 USENIX CLOCK-Pro paper]: https://www.usenix.org/conference/2005-usenix-annual-technical-conference/clock-pro-effective-improvement-clock-replacement
// [CLOCK-PRO+ paper]: https://dl.acm.org/doi/10.1145/3319647.3325838
package clock
