package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

func scoredRow(ticker string, finalScore float64) contracts.ScoredRow {
	return contracts.ScoredRow{
		IndicatorRow: contracts.IndicatorRow{Ticker: ticker},
		FinalScore:   finalScore,
	}
}

func TestTopN_OrdersByFinalScoreDesc(t *testing.T) {
	s := NewSelector(logger.NewNop())

	rows := []contracts.ScoredRow{
		scoredRow("000001", 0.4),
		scoredRow("000002", 1.9),
		scoredRow("000003", 1.1),
		scoredRow("000004", 0.9),
	}

	result := s.TopN(rows, 3)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "000002", result.Rows[0].Ticker)
	assert.Equal(t, "000003", result.Rows[1].Ticker)
	assert.Equal(t, "000004", result.Rows[2].Ticker)
	assert.False(t, result.FallbackUsed)

	// Input is not reordered.
	assert.Equal(t, "000001", rows[0].Ticker)
}

func TestTopN_TiesKeepInputOrder(t *testing.T) {
	s := NewSelector(logger.NewNop())

	rows := []contracts.ScoredRow{
		scoredRow("000009", 1.0),
		scoredRow("000001", 1.0),
		scoredRow("000005", 1.0),
	}

	result := s.TopN(rows, 2)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "000009", result.Rows[0].Ticker)
	assert.Equal(t, "000001", result.Rows[1].Ticker)
}

func TestTopN_FewerRowsThanN(t *testing.T) {
	s := NewSelector(logger.NewNop())

	rows := []contracts.ScoredRow{
		scoredRow("000001", 0.5),
		scoredRow("000002", 0.7),
	}

	result := s.TopN(rows, 5)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "000002", result.Rows[0].Ticker)
	assert.False(t, result.FallbackUsed)
}

func TestTopN_EmptyAndNonPositive(t *testing.T) {
	s := NewSelector(logger.NewNop())

	assert.Empty(t, s.TopN(nil, 5).Rows)
	assert.Empty(t, s.TopN([]contracts.ScoredRow{scoredRow("000001", 1)}, 0).Rows)
	assert.Empty(t, s.TopN([]contracts.ScoredRow{scoredRow("000001", 1)}, -1).Rows)
}
