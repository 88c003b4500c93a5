package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// speaker synthesizes spoken confirmations through an OpenAI-compatible
// TTS endpoint and plays them with whatever local player is installed
type speaker struct {
	endpoint string
	voice    string
	client   *http.Client
}

func newSpeaker(endpoint, voice string) *speaker {
	return &speaker{
		endpoint: endpoint,
		voice:    voice,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Say synthesizes and plays one phrase. Failures are returned rather
// than retried; spoken feedback is best-effort.
func (s *speaker) Say(ctx context.Context, text string) error {
	text = cleanForSpeech(text)
	if text == "" || s.endpoint == "" {
		return nil
	}

	payload := map[string]interface{}{
		"input": text,
		"voice": s.voice,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TTS endpoint returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read TTS audio: %w", err)
	}

	return playAudio(audio)
}

// playAudio writes the synthesized audio to a temp file and plays it
// with the first available player
func playAudio(audio []byte) error {
	tempFile := filepath.Join(os.TempDir(), fmt.Sprintf("audiens_tts_%d.mp3", time.Now().UnixNano()))
	if err := os.WriteFile(tempFile, audio, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	defer os.Remove(tempFile)

	players := []string{"mpg123", "ffplay", "aplay"}
	for _, player := range players {
		if err := exec.Command(player, tempFile).Run(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no audio player found")
}

// cleanForSpeech strips markdown formatting so TTS does not read
// asterisks and backticks aloud
func cleanForSpeech(text string) string {
	replacer := strings.NewReplacer("```", "", "`", "", "**", "", "*", "", "#", "", "[", "", "]", "")
	return strings.TrimSpace(replacer.Replace(text))
}
