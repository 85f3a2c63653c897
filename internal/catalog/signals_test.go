package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSignals_Defaults(t *testing.T) {
	path := writeTempFile(t, "signals.yaml", `
signals:
  - id: signal_001
    theme: 人工智能
    keywords: [AI, 算力]
    priority: high
  - id: signal_002
    theme: 半导体
    priority: medium
  - id: signal_003
    theme: 白酒
  - id: signal_004
    theme: 光伏
    weight: 0.75
    core_theme: 新能源
    phase: paper
  - id: signal_009
    theme: 风险
    priority: high
`)

	signals, raw, err := LoadSignals(path)
	require.NoError(t, err)
	require.Len(t, signals, 5)
	assert.NotEmpty(t, raw)

	// Priority drives the weight when none is declared.
	assert.Equal(t, 1.0, signals[0].Weight)
	assert.Equal(t, 0.6, signals[1].Weight)

	// Missing priority defaults to low.
	assert.Equal(t, "low", signals[2].Priority)
	assert.Equal(t, 0.3, signals[2].Weight)

	// Explicit weight wins over priority.
	assert.Equal(t, 0.75, signals[3].Weight)
	assert.Equal(t, "新能源", signals[3].CoreTheme)
	assert.Equal(t, "paper", signals[3].Phase)

	// The risk signal defaults to zero weight despite high priority.
	assert.Equal(t, 0.0, signals[4].Weight)
	assert.True(t, signals[4].IsRisk())

	// core_theme falls back to theme, phase to live.
	assert.Equal(t, "人工智能", signals[0].CoreTheme)
	assert.Equal(t, "live", signals[0].Phase)
}

func TestLoadSignals_ExplicitWeightOnRiskSignal(t *testing.T) {
	path := writeTempFile(t, "signals.yaml", `
signals:
  - id: signal_009
    theme: 风险
    weight: 0.5
`)

	signals, _, err := LoadSignals(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, signals[0].Weight)
}

func TestLoadSignals_UnknownFieldFails(t *testing.T) {
	path := writeTempFile(t, "signals.yaml", `
signals:
  - id: signal_001
    theme: 人工智能
    keyword: AI
`)

	_, _, err := LoadSignals(path)
	assert.Error(t, err)
}

func TestLoadSignals_MissingIDFails(t *testing.T) {
	path := writeTempFile(t, "signals.yaml", `
signals:
  - theme: 人工智能
`)

	_, _, err := LoadSignals(path)
	assert.Error(t, err)
}

func TestLoadSignals_MissingFile(t *testing.T) {
	_, _, err := LoadSignals(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
