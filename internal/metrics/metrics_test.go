package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
)

func TestObserveTurn(t *testing.T) {
	turnsBefore := testutil.ToFloat64(TurnsRecorded)
	summarizedBefore := testutil.ToFloat64(TurnsSummarized)
	overBefore := testutil.ToFloat64(OverBudgetEvents)

	ObserveTurn(contextwindow.Outcome{Summarized: 3}, contextwindow.Statistics{UtilizationRate: 42})
	ObserveTurn(contextwindow.Outcome{OverBudget: true}, contextwindow.Statistics{UtilizationRate: 100})

	assert.Equal(t, turnsBefore+2, testutil.ToFloat64(TurnsRecorded))
	assert.Equal(t, summarizedBefore+3, testutil.ToFloat64(TurnsSummarized))
	assert.Equal(t, overBefore+1, testutil.ToFloat64(OverBudgetEvents))
}
