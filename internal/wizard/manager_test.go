package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *machineFixture) {
	f := newFixture(t)
	return NewManager(f.machine, ttl, logger.NewTestLogger(t)), f
}

func TestManager_OpenAndGet(t *testing.T) {
	mgr, _ := newTestManager(t, time.Hour)

	sess := mgr.Open("pipe-1")
	assert.Equal(t, 1, mgr.Count())

	found, err := mgr.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, found)
}

func TestManager_GetUnknownSession(t *testing.T) {
	mgr, _ := newTestManager(t, time.Hour)

	_, err := mgr.Get("no-such-session")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.AsStandardError(err).Code)
}

func TestManager_CloseRemovesSession(t *testing.T) {
	mgr, _ := newTestManager(t, time.Hour)
	sess := mgr.Open("pipe-1")

	require.NoError(t, mgr.Close(sess.ID))

	assert.Equal(t, 0, mgr.Count())
	assert.True(t, sess.Closed())
	_, err := mgr.Get(sess.ID)
	assert.Error(t, err)

	err = mgr.Close(sess.ID)
	assert.Error(t, err, "closing an already-removed session reports not found")
}

func TestManager_SweepExpiresIdleSessions(t *testing.T) {
	mgr, _ := newTestManager(t, 10*time.Millisecond)
	sess := mgr.Open("pipe-1")

	time.Sleep(30 * time.Millisecond)
	mgr.sweep()

	assert.Equal(t, 0, mgr.Count())
	assert.True(t, sess.Closed())
}
