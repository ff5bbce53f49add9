// Package audiosource reads real-valued baseband samples from a sound
// card, the same role the teacher's own sound-card input (src/audio.go)
// plays for its modems, packaged here as a producer that can sit
// upstream of digitalll.TimeTagShifter in a demo pipeline.
package audiosource

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Source streams float64 samples from the default input device at
// SampleRate, one chunk of the bufSize given to Open at a time.
type Source struct {
	stream     *portaudio.Stream
	buf        []float32
	SampleRate float64
}

// Open starts a mono input stream at sampleRate, reading bufSize
// samples per Read call.
func Open(sampleRate float64, bufSize int) (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiosource: initialize: %w", err)
	}

	s := &Source{buf: make([]float32, bufSize), SampleRate: sampleRate}

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, bufSize, s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audiosource: open stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audiosource: start stream: %w", err)
	}
	return s, nil
}

// Read blocks until one buffer's worth of samples is available and
// copies them, widened to float64, into out. len(out) must equal the
// bufSize Open was called with.
func (s *Source) Read(out []float64) error {
	if err := s.stream.Read(); err != nil {
		return fmt.Errorf("audiosource: read: %w", err)
	}
	n := len(out)
	if n > len(s.buf) {
		n = len(s.buf)
	}
	for i := 0; i < n; i++ {
		out[i] = float64(s.buf[i])
	}
	return nil
}

// Close stops the stream and releases the portaudio runtime.
func (s *Source) Close() error {
	err := s.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
