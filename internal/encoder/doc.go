// Package encoder runs one pass over a library: scan, filter, submit every
// task to the queue, then reconcile the tasks one by one in submission order.
//
// A failure on a single file is logged and counted; the run only stops for
// context cancellation or an unreachable queue.
package encoder
