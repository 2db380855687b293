// Package live runs a real-time voice and vision conversation against the
// Gemini Live API.
//
// Machine is the protocol state machine. It owns the ordered outbound queue
// and interprets inbound server messages. Session is the facade that wires
// the machine to the transport, the capture devices and the playback
// scheduler:
//
//	sess := live.NewSession(live.SessionConfig{APIKey: key, Audio: mic, Sink: speaker})
//	sess.OnTranscript(func(sp live.Speaker, text string, final bool) { ... })
//	if err := sess.Start(ctx, live.DefaultOptions()); err != nil { ... }
//	defer sess.Stop(context.Background())
package live
