package browser

import (
	"context"
	"testing"

	"github.com/ternarybob/audiens/internal/common"
)

func TestScreenshotUnknownSession(t *testing.T) {
	svc := NewService(&common.CRMConfig{}, NewPool(common.GetLogger()), nil, nil, common.GetLogger())

	if _, err := svc.Screenshot(context.Background(), "crm_missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
