package manager

import (
	"os"

	"github.com/go-audio/wav"
)

const whisperSampleRate = 16000

// decodeWAV reads a PCM WAV file into the mono float32 stream the speech
// engine expects. Anything but 16 kHz mono WAV is a validation error; the
// caller is expected to resample before uploading.
func decodeWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, ErrValidation("audio payload is not decodable WAV: %v", err)
	}
	if dec.SampleRate != whisperSampleRate {
		return nil, ErrValidation("audio must be %d Hz WAV, got %d Hz", whisperSampleRate, dec.SampleRate)
	}
	if dec.NumChans != 1 {
		return nil, ErrValidation("audio must be mono WAV, got %d channels", dec.NumChans)
	}
	return buf.AsFloat32Buffer().Data, nil
}
