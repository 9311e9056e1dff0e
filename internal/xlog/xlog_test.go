// SPDX-License-Identifier: Unlicense OR MIT

package xlog

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerTagsRecordsWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(slog.NewTextHandler(&buf, nil))
	defer SetHandler(slog.NewTextHandler(io.Discard, nil))

	For("backend").Info("frame published", "primitives", 3)

	out := buf.String()
	if !strings.Contains(out, "component=backend") {
		t.Errorf("expected component=backend in log output, got %q", out)
	}
	if !strings.Contains(out, "frame published") {
		t.Errorf("expected message in log output, got %q", out)
	}
	if !strings.Contains(out, "primitives=3") {
		t.Errorf("expected key/value args in log output, got %q", out)
	}
}
