// Package playback schedules model audio for gapless output.
//
// Each chunk starts at max(cursor, now) and advances the cursor by its
// duration, so back-to-back chunks play contiguously and a late chunk starts
// immediately instead of in the past. Interrupt stops everything in flight
// and rewinds the cursor so the next chunk starts at the current time.
//
// Audio is 16-bit little-endian mono PCM at 24 kHz. No resampling is done.
package playback
