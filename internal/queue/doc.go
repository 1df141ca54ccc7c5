// Package queue implements the priority job queue and its single worker.
//
// Jobs are flat JSON payloads stored in four priority lists (1=urgent,
// 4=low) plus a retry list and a dead-letter list. One worker drains the
// tiers in strict order, resolves each payload through a job type registry,
// applies per-type rate limits, and routes failures to retry or dead-letter.
package queue
