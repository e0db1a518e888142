// Package workers computes worker pool sizes from the available CPU
// count, with an environment override for manual tuning.
package workers
