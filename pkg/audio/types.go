// Package audio provides the frame and buffer primitives of the RealTalk
// capture path: the AudioFrame type, the fixed-capacity RingBuffer that
// decouples the real-time capture callback from the processing chain, PCM
// sample helpers, and the Source interface over audio input devices.
package audio

import "time"

// AudioFrame represents a single fixed-length frame of audio flowing through
// the pipeline. Frames are the atomic unit of audio transport — captured from
// the input source, denoised, classified by VAD, and accumulated into
// utterances.
//
// A frame is immutable once produced. Ownership transfers with the frame:
// the stage that produced it may not touch it after handing it downstream.
type AudioFrame struct {
	// Data is 16-bit little-endian mono PCM.
	Data []byte

	// SampleRate in Hz (16000 for the recognition-side chain).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of PCM samples in the frame.
func (f AudioFrame) Samples() int {
	return len(f.Data) / 2
}

// Duration returns the playback length of the frame. Returns zero for frames
// with an unset sample rate.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}

// Utterance is one contiguous speech segment bounded by silence: the denoised
// frames between a SpeechStart and SpeechEnd boundary plus their timestamps.
// An utterance is immutable once finalized and is consumed exactly once by
// the recognition stage.
type Utterance struct {
	// Seq is the monotonically increasing capture-order sequence number
	// assigned on finalization.
	Seq uint64

	// Frames are the denoised speech frames in capture order.
	Frames []AudioFrame

	// Start and End are the capture timestamps of the first and last frame.
	Start time.Duration
	End   time.Duration
}

// Duration returns the speech length of the utterance.
func (u Utterance) Duration() time.Duration {
	return u.End - u.Start
}

// PCM concatenates the utterance's frames into a single 16-bit little-endian
// mono PCM buffer suitable for a recognition request.
func (u Utterance) PCM() []byte {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range u.Frames {
		out = append(out, f.Data...)
	}
	return out
}
