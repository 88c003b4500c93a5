package report

import (
	"bytes"
	"testing"
)

func TestRenderPDF(t *testing.T) {
	markdown := `# Daily Digest

Generated for testing.

---

## Sessions

- Sessions started: **3**
- Total sessions: **10**
`
	data, err := RenderPDF(markdown, "Daily Digest")
	if err != nil {
		t.Fatalf("RenderPDF failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("Expected PDF magic bytes, got %q", data[:8])
	}
	if len(data) < 500 {
		t.Errorf("Expected non-trivial PDF output, got %d bytes", len(data))
	}
}

func TestRenderPDFEmptyMarkdown(t *testing.T) {
	data, err := RenderPDF("", "Empty")
	if err != nil {
		t.Fatalf("RenderPDF failed on empty input: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Expected valid PDF for empty markdown")
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("staged"); got != "Staged" {
		t.Errorf("Expected Staged, got %q", got)
	}
	if got := capitalize(""); got != "" {
		t.Errorf("Expected empty string unchanged, got %q", got)
	}
}
