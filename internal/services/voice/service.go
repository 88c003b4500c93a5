// -----------------------------------------------------------------------
// Voice Service - microphone capture, wake word detection, and command
// dispatch. Utterances are segmented with RMS energy voice activity
// detection, transcribed via Whisper, and published as voice command
// events for the workflow controller.
// -----------------------------------------------------------------------

package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

const framesPerBuffer = 1024

// Service runs the microphone listening loop
type Service struct {
	config      *common.VoiceConfig
	events      interfaces.EventService
	transcriber *transcriber
	speaker     *speaker
	tracker     interfaces.Tracker
	logger      arbor.ILogger

	silenceCutoff time.Duration
	maxUtterance  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewService creates the voice service. The microphone is not opened
// until Start is called.
func NewService(cfg *common.VoiceConfig, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		config:        cfg,
		events:        events,
		transcriber:   newTranscriber(cfg.WhisperEndpoint, cfg.WhisperModel, common.ParseDurationOr(cfg.TranscribeTimeout, 30*time.Second)),
		speaker:       newSpeaker(cfg.TTSEndpoint, cfg.TTSVoice),
		logger:        logger,
		silenceCutoff: common.ParseDurationOr(cfg.SilenceCutoff, 1500*time.Millisecond),
		maxUtterance:  common.ParseDurationOr(cfg.MaxUtterance, 30*time.Second),
	}
}

// SetTracker attaches the request metrics recorder
func (s *Service) SetTracker(t interfaces.Tracker) {
	s.tracker = t
}

// Start opens the microphone and begins the listen loop
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Voice service disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.listenLoop(ctx)

	s.logger.Info().
		Str("wake_word", s.config.WakeWord).
		Int("sample_rate", s.config.SampleRate).
		Msg("Voice service started")

	return nil
}

// Stop ends the listen loop and releases the microphone
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.cancel()
	<-s.done
	s.running = false
	portaudio.Terminate()

	s.logger.Info().Msg("Voice service stopped")
}

// IsRunning reports whether the listen loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Speak plays a spoken confirmation if spoken feedback is enabled
func (s *Service) Speak(ctx context.Context, text string) {
	if !s.config.Enabled || !s.config.SpokenFeedback {
		return
	}
	if err := s.speaker.Say(ctx, text); err != nil {
		s.logger.Warn().Err(err).Msg("Spoken feedback failed")
	}
}

// listenLoop records utterances back to back until the context ends
func (s *Service) listenLoop(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		samples, err := s.recordUtterance(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Audio capture failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if len(samples) == 0 {
			continue
		}

		start := time.Now()
		transcript, err := s.transcriber.Transcribe(ctx, encodeWAV(samples, s.config.SampleRate))
		if s.tracker != nil {
			s.tracker.Record("voice", err == nil, time.Since(start), err)
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Transcription failed")
			continue
		}
		if transcript == "" {
			continue
		}

		s.handleTranscript(ctx, transcript)
	}
}

// recordUtterance captures one utterance, returning once trailing
// silence exceeds the cutoff or the utterance hits the length cap.
// Returns an empty slice when no speech was detected at all.
func (s *Service) recordUtterance(ctx context.Context) ([]float32, error) {
	var (
		mu             sync.Mutex
		samples        []float32
		speechDetected bool
		lastSpeech     = time.Now()
	)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.config.SampleRate), framesPerBuffer, func(in []float32) {
		mu.Lock()
		defer mu.Unlock()
		samples = append(samples, in...)
		if rmsEnergy(in) > s.config.SilenceThreshold {
			speechDetected = true
			lastSpeech = time.Now()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer stream.Stop()

	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}

		mu.Lock()
		detected := speechDetected
		sinceSpeech := time.Since(lastSpeech)
		mu.Unlock()

		if detected && sinceSpeech > s.silenceCutoff {
			break
		}
		if time.Since(start) > s.maxUtterance {
			break
		}
		// Without speech, keep the window rolling so stale audio is not
		// sent to the transcriber
		if !detected && time.Since(start) > s.silenceCutoff*4 {
			return nil, nil
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !speechDetected {
		return nil, nil
	}
	result := make([]float32, len(samples))
	copy(result, samples)
	return result, nil
}

// handleTranscript checks the wake word and publishes command events
func (s *Service) handleTranscript(ctx context.Context, transcript string) {
	normalized := normalizeTranscript(transcript)
	wakeWord := normalizeTranscript(s.config.WakeWord)

	s.logger.Debug().Str("transcript", transcript).Msg("Utterance transcribed")

	if wakeWord != "" && !strings.HasPrefix(normalized, wakeWord) {
		return
	}

	command := strings.TrimSpace(strings.TrimPrefix(normalized, wakeWord))

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventWakeWordDetected,
		Payload: map[string]interface{}{
			"transcript": transcript,
		},
	})

	if command == "" {
		return
	}

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventVoiceCommand,
		Payload: map[string]interface{}{
			"command":    command,
			"transcript": transcript,
		},
	})
}

// normalizeTranscript lowercases and strips punctuation so wake word
// matching survives transcription quirks like "Hey, Slate!"
func normalizeTranscript(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
