package live

import (
	"strings"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/statestore"
)

// Speaker identifies who produced a transcript.
type Speaker = statestore.Speaker

// Speakers.
const (
	SpeakerUser  = statestore.SpeakerUser
	SpeakerModel = statestore.SpeakerModel
)

// TurnRecord is one finalized turn.
type TurnRecord = statestore.TurnRecord

// Usage holds cumulative token counts.
type Usage = statestore.Usage

// TranscriptBuffer accumulates the current turn's transcripts. It is not
// safe for concurrent use; the machine guards it.
type TranscriptBuffer struct {
	user  strings.Builder
	model strings.Builder
}

// Append adds a fragment for speaker.
func (b *TranscriptBuffer) Append(speaker Speaker, text string) {
	if speaker == SpeakerUser {
		b.user.WriteString(text)
		return
	}
	b.model.WriteString(text)
}

// User returns the user transcript so far.
func (b *TranscriptBuffer) User() string { return b.user.String() }

// Model returns the model transcript so far.
func (b *TranscriptBuffer) Model() string { return b.model.String() }

// Flush returns both transcripts and clears the buffer.
func (b *TranscriptBuffer) Flush() (user, model string) {
	user, model = b.user.String(), b.model.String()
	b.user.Reset()
	b.model.Reset()
	return user, model
}
