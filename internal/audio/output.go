package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
)

const (
	defaultReadyTimeout = 2 * time.Second
	nullTick            = 10 * time.Millisecond
	speakerBuffer       = 50 * time.Millisecond
)

// Output pulls PCM from a source in real time until closed.
type Output interface {
	Start(src io.Reader) error
	Close() error
}

// NewOutput builds the output named by kind.
func NewOutput(kind contracts.OutputKind, sampleRate int, readyTimeout time.Duration, log contracts.Logger) (Output, error) {
	switch kind {
	case contracts.SpeakerOutput, "":
		return &speaker{sampleRate: sampleRate, readyTimeout: readyTimeout, log: log}, nil
	case contracts.NullOutput:
		return NewNullOutput(sampleRate), nil
	default:
		return nil, errkind.New(errkind.Validation, fmt.Sprintf("unknown output %q", kind), "unknown audio output")
	}
}

// oto allows one context per process; sessions share it and own their players.
var device struct {
	once  sync.Once
	ctx   *oto.Context
	ready chan struct{}
	rate  int
	err   error
}

func openDevice(sampleRate int) (*oto.Context, chan struct{}, error) {
	device.once.Do(func() {
		device.rate = sampleRate
		device.ctx, device.ready, device.err = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   speakerBuffer,
		})
	})
	if device.err != nil {
		return nil, nil, device.err
	}
	if device.rate != sampleRate {
		return nil, nil, fmt.Errorf("audio device already open at %d Hz, cannot reopen at %d Hz", device.rate, sampleRate)
	}
	return device.ctx, device.ready, nil
}

type speaker struct {
	sampleRate   int
	readyTimeout time.Duration
	log          contracts.Logger

	mu     sync.Mutex
	player *oto.Player
}

func (s *speaker) Start(src io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return errors.New("speaker already started")
	}

	ctx, ready, err := openDevice(s.sampleRate)
	if err != nil {
		return errkind.Wrap(err, errkind.Resource, "audio device unavailable")
	}
	timeout := s.readyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	select {
	case <-ready:
	case <-time.After(timeout):
		return errkind.New(errkind.Resource, fmt.Sprintf("audio device not ready after %s", timeout), "audio device did not become ready")
	}
	if err := ctx.Resume(); err != nil {
		s.log.Warn("resuming audio device", s.log.Field().Error("error", err))
	}

	s.player = ctx.NewPlayer(src)
	s.player.Play()
	s.log.Debug("speaker started", s.log.Field().Int("sample_rate", s.sampleRate))
	return nil
}

func (s *speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	p := s.player
	s.player = nil
	p.Pause()
	return p.Close()
}

// NullOutput pulls the source at real-time pace and discards the audio. It
// keeps the capture tap fed when no sound device is wanted.
type NullOutput struct {
	sampleRate int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewNullOutput(sampleRate int) *NullOutput {
	return &NullOutput{sampleRate: sampleRate}
}

func (n *NullOutput) Start(src io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return errors.New("null output already started")
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.pump(src, n.stop, n.done)
	return nil
}

func (n *NullOutput) pump(src io.Reader, stop, done chan struct{}) {
	defer close(done)
	frames := int(float64(n.sampleRate) * nullTick.Seconds())
	if frames < 1 {
		frames = 1
	}
	buf := make([]byte, frames*bytesPerFrame)
	ticker := time.NewTicker(nullTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := io.ReadFull(src, buf); err != nil {
				return
			}
		}
	}
}

// Close stops the pump and waits for it to exit, so no read happens after
// Close returns.
func (n *NullOutput) Close() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
