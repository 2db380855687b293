// Package capture samples the microphone and camera for a live session.
//
// A Capturer owns one AudioSource and an optional FrameSource for the
// duration of a session. Start acquires both devices or neither; Stop
// releases everything. Audio is read continuously as 16 kHz mono PCM16 in
// fixed frames (100 ms by default) and dropped while muted. Video frames are
// grabbed at 1-2 fps, downscaled and re-encoded as JPEG at the configured
// quality; a cycle is skipped when the camera is not ready or video is
// disabled, and stale frames are never queued.
package capture
