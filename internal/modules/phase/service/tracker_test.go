package service

import (
	"testing"
	"time"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openerSpy struct{ opened []time.Time }

func (o *openerSpy) OpenSession(now time.Time) { o.opened = append(o.opened, now) }

type recoveryFlag bool

func (p recoveryFlag) Active() bool { return bool(p) }

var marketOpen = time.Date(2026, 10, 15, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))

func TestTracker_Sequence(t *testing.T) {
	spy := &openerSpy{}
	tr := NewTracker(spy, recoveryFlag(false))
	assert.Equal(t, models.PhaseNotOperational, tr.Phase())

	steps := []struct {
		code    string
		want    models.MarketPhase
		changed bool
	}{
		{"0", models.PhaseBeforeOpen, true},
		{"42", models.PhaseBeforeOpen, false},
		{"3", models.PhaseOpen, true},
		{"3", models.PhaseOpen, false},
		{"0", models.PhaseOpen, false},
		{"2", models.PhaseAfterSimultaneousQuote, true},
		{"4", models.PhaseAfterClose, true},
		{"8", models.PhaseAfterClose, false},
		{"9", models.PhaseAfterCloseComplete, true},
	}
	for i, s := range steps {
		got := tr.Apply(models.PhaseEvent{Code: s.code, At: marketOpen.Add(time.Duration(i) * time.Minute)})
		assert.Equal(t, s.changed, got, "step %d code %s", i, s.code)
		assert.Equal(t, s.want, tr.Phase(), "step %d code %s", i, s.code)
	}

	require.Len(t, spy.opened, 1)
	assert.Equal(t, marketOpen.Add(2*time.Minute), spy.opened[0])
	assert.True(t, tr.Closed())
	assert.False(t, tr.Trading())
}

func TestTracker_OpenDuringRecoveryDoesNotOpenSession(t *testing.T) {
	spy := &openerSpy{}
	tr := NewTracker(spy, recoveryFlag(true))

	require.True(t, tr.Apply(models.PhaseEvent{Code: "3", At: marketOpen}))
	assert.True(t, tr.Trading())
	assert.Empty(t, spy.opened)
}

func TestTracker_AssumeAndReset(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Assume(models.PhaseOpen, marketOpen)
	assert.True(t, tr.Trading())
	assert.Equal(t, marketOpen, tr.ChangedAt())

	// повторное открытие не переоткрывает сессию
	assert.False(t, tr.Apply(models.PhaseEvent{Code: "3", At: marketOpen}))

	tr.Reset()
	assert.Equal(t, models.PhaseNotOperational, tr.Phase())
	assert.True(t, tr.Apply(models.PhaseEvent{Code: "3", At: marketOpen}))
}
