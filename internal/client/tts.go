package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// speaking rate used to estimate narration length before the audio is measured
const wordsPerSecond = 2.5

// TTSProvider synthesizes narration audio
type TTSProvider interface {
	Name() string
	Synthesize(ctx context.Context, text, voiceID string, opts SpeechOptions) (*Speech, error)
}

// SpeechOptions tune synthesis
type SpeechOptions struct {
	Language string
	Speed    float64
}

// Speech is one synthesized clip
type Speech struct {
	Audio       []byte
	ContentType string
	Duration    time.Duration
	Provider    string
}

// EstimateSpeechDuration approximates how long text takes to read aloud.
func EstimateSpeechDuration(text string, speed float64) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if speed <= 0 {
		speed = 1
	}
	seconds := float64(words) / (wordsPerSecond * speed)
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(math.Ceil(perSec))
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// FallbackTTS tries each provider in order until one succeeds.
type FallbackTTS struct {
	providers []TTSProvider
	log       logrus.FieldLogger
}

// NewFallbackTTS chains providers; nil entries are skipped
func NewFallbackTTS(log logrus.FieldLogger, providers ...TTSProvider) *FallbackTTS {
	var ps []TTSProvider
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &FallbackTTS{providers: ps, log: log.WithField("component", "tts")}
}

func (f *FallbackTTS) Name() string { return "fallback" }

// Len returns the number of configured providers.
func (f *FallbackTTS) Len() int { return len(f.providers) }

func (f *FallbackTTS) Synthesize(ctx context.Context, text, voiceID string, opts SpeechOptions) (*Speech, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no TTS provider configured")
	}

	var errs []error
	for _, p := range f.providers {
		speech, err := p.Synthesize(ctx, text, voiceID, opts)
		if err == nil {
			return speech, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.WithError(err).WithField("provider", p.Name()).Warn("TTS provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// SilentTTS produces no audio and only estimates the narration length. It is
// used when no provider is configured so renders still get timed scenes.
type SilentTTS struct{}

func (SilentTTS) Name() string { return "silent" }

func (SilentTTS) Synthesize(_ context.Context, text, _ string, opts SpeechOptions) (*Speech, error) {
	return &Speech{Duration: EstimateSpeechDuration(text, opts.Speed), Provider: "silent"}, nil
}
