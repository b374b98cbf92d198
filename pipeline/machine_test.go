package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineLegalTransitions(t *testing.T) {
	m := NewMachine(time.Hour, "")
	require.NoError(t, m.Set(PhaseRefining, "refining"))
	require.NoError(t, m.Set(PhaseRefined, "refined"))
	require.NoError(t, m.Set(PhaseSubmitting, "submitting"))
	require.NoError(t, m.Set(PhasePolling, "polling"))
	require.NoError(t, m.Set(PhasePolling, ""))
	require.NoError(t, m.Set(PhaseSuccess, "done"))
	assert.Equal(t, GenerationStatus{Phase: PhaseSuccess, Message: "done"}, m.Status())
}

func TestMachineRejectsIllegalTransitions(t *testing.T) {
	m := NewMachine(time.Hour, "")
	err := m.Set(PhaseSubmitting, "")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, PhaseIdle, te.From)

	require.NoError(t, m.Set(PhaseGeneratingPortraits, ""))
	require.NoError(t, m.Set(PhaseError, "boom"))
	assert.Error(t, m.Set(PhaseGeneratingPortraits, ""), "terminal phase needs an explicit reset")
	assert.Error(t, m.Set(PhaseIdle, ""))

	m.Reset("again")
	assert.Equal(t, PhaseIdle, m.Status().Phase)
	assert.NoError(t, m.Set(PhaseGeneratingPortraits, ""))
}

func TestMachineRotatesPollingMessages(t *testing.T) {
	m := NewMachine(5*time.Millisecond, "")
	require.NoError(t, m.Set(PhaseRefining, ""))
	require.NoError(t, m.Set(PhaseRefined, ""))
	require.NoError(t, m.Set(PhaseSubmitting, ""))
	require.NoError(t, m.Set(PhasePolling, "Video generation in progress..."))
	assert.Equal(t, PollingMessages[0], m.Status().Message)

	require.Eventually(t, func() bool {
		return m.Status().Message == PollingMessages[2]
	}, time.Second, time.Millisecond)

	require.NoError(t, m.Set(PhaseSuccess, "Video generation complete!"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "Video generation complete!", m.Status().Message)
}

func TestMachineSubscribeKeepsLatest(t *testing.T) {
	m := NewMachine(time.Hour, "ready")
	ch, cancel := m.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, "ready", first.Message)

	require.NoError(t, m.Set(PhaseRefining, "a"))
	require.NoError(t, m.Set(PhaseRefined, "b"))
	latest := <-ch
	assert.Equal(t, GenerationStatus{Phase: PhaseRefined, Message: "b"}, latest)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestPhaseText(t *testing.T) {
	b, err := PhasePolling.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "polling", string(b))
	assert.True(t, PhaseError.Terminal())
	assert.True(t, PhaseRefining.Busy())
	assert.False(t, PhaseRefined.Busy())
}
