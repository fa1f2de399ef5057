// Package lockdir implements filesystem-backed mutual exclusion.
//
// A lock is a directory at <resource>.lock; ownership belongs to whoever
// created it. Directory creation is atomic on every filesystem limner
// targets, which makes the lock hold across process boundaries without any
// in-memory coordination. There is no waiter queue: contending acquirers
// poll at a fixed interval, so fairness is not guaranteed and starvation
// under heavy contention is possible.
//
// A lock directory left behind by a crashed holder is never broken
// automatically; every subsequent acquire times out naming the path so an
// operator can remove it deliberately (limner locks clear).
package lockdir
