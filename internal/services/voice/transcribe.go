package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// transcriber converts recorded audio to text using an OpenAI-compatible
// Whisper HTTP endpoint, falling back to a local whisper CLI when no
// endpoint is configured or the request fails
type transcriber struct {
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
}

func newTranscriber(endpoint, model string, timeout time.Duration) *transcriber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &transcriber{
		endpoint: endpoint,
		model:    model,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Transcribe converts WAV audio to text
func (t *transcriber) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	if t.endpoint != "" {
		text, err := t.transcribeHTTP(ctx, wavData)
		if err == nil {
			return text, nil
		}
		cliText, cliErr := t.transcribeCLI(wavData)
		if cliErr != nil {
			return "", fmt.Errorf("transcription failed: %w", err)
		}
		return cliText, nil
	}
	return t.transcribeCLI(wavData)
}

// transcribeHTTP posts the audio to the configured Whisper endpoint
func (t *transcriber) transcribeHTTP(ctx context.Context, wavData []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if t.model != "" {
		writer.WriteField("model", t.model)
	}
	writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// transcribeCLI shells out to a local whisper installation. The txt
// output file variant is tried first since it hides progress noise.
func (t *transcriber) transcribeCLI(wavData []byte) (string, error) {
	tempFile := filepath.Join(os.TempDir(), fmt.Sprintf("audiens_voice_%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(tempFile, wavData, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp audio: %w", err)
	}
	defer os.Remove(tempFile)

	model := t.model
	if model == "" {
		model = "base"
	}

	outDir := os.TempDir()
	cmd := exec.Command("whisper", tempFile, "--model", model, "--output_format", "txt", "--output_dir", outDir, "--verbose", "False")
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err == nil {
		baseName := strings.TrimSuffix(filepath.Base(tempFile), filepath.Ext(tempFile))
		outputFile := filepath.Join(outDir, baseName+".txt")
		if content, readErr := os.ReadFile(outputFile); readErr == nil {
			os.Remove(outputFile)
			if text := strings.TrimSpace(string(content)); text != "" {
				return text, nil
			}
		}
	}

	output, err := exec.Command("whisper-cpp", tempFile).Output()
	if err == nil {
		if text := strings.TrimSpace(string(output)); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("no whisper transcriber available, configure whisper_endpoint or install whisper")
}
