// Package audio measures microphone input for the live session.
//
// RMS computes a normalized level for each captured frame, which the session
// reports through OnAudioLevel. SimpleVAD smooths those levels into a
// quiet/starting/speaking/stopping state machine so the session can tell
// observers when the user starts and stops talking. Detection is local and
// advisory: turn-taking is decided by the service.
//
//	vad, _ := audio.NewSimpleVAD(audio.DefaultVADParams())
//	for frame := range frames {
//	    res := vad.Analyze(frame)
//	    if res.Transition != nil && res.Transition.State == audio.VADStateSpeaking {
//	        // user started talking
//	    }
//	}
package audio
