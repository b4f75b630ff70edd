// Package contentindex is the boundary to the platform media index that
// stores each file's "date taken". Writers push changes through ApplyBatch
// in batches of at most MaxBatchSize updates.
package contentindex
