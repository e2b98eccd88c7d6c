// Package types defines the shared types used across all voxnote packages.
//
// These types form the lingua franca between the recorder, the transcription
// providers, and the session orchestrator. Each package defines its own
// domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

// Transcription is the canonical, provider-independent result of a single
// transcribe call. Providers return their own wire formats; the transcription
// client normalises every response into this shape before it is handed to
// callers or persisted to the sidecar file.
type Transcription struct {
	// Text is the full transcribed speech content. An empty Text means the
	// provider found no speech in the audio; see transcribe.ErrNoSpeech.
	Text string `json:"text"`

	// Language is the language code reported by the provider, copied verbatim
	// (e.g., "en").
	Language string `json:"language"`

	// Segments holds the per-utterance breakdown in provider order. Never nil
	// after normalisation; may be empty.
	Segments []Segment `json:"segments"`
}

// Segment is one timed slice of a [Transcription].
type Segment struct {
	// ID is the provider-assigned segment index, starting at 0.
	ID int `json:"id"`

	// Start and End are offsets into the recording, in seconds.
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Text is the transcribed content of this segment.
	Text string `json:"text"`

	// Tokens holds the provider's token IDs for this segment. Defaults to an
	// empty slice when the provider omits them; never nil after normalisation.
	Tokens []int `json:"tokens"`

	// Temperature is the sampling temperature the provider used for this
	// segment. Defaults to 0 when the provider omits it.
	Temperature float64 `json:"temperature"`
}
