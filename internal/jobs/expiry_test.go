package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type recordingExpiryStore struct {
	year, month int
	calls       int
	n           int64
	err         error
}

func (r *recordingExpiryStore) ExpireBefore(_ context.Context, year, month int) (int64, error) {
	r.year, r.month = year, month
	r.calls++
	return r.n, r.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCutoff(t *testing.T) {
	year, month := Cutoff(time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, year)
	assert.Equal(t, 8, month)

	// year boundary
	year, month = Cutoff(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2027, year)
	assert.Equal(t, 1, month)
}

func TestRunSweepsWithCurrentCutoff(t *testing.T) {
	store := &recordingExpiryStore{n: 3}
	NewExpirySweeper(store, quietLogger()).Run()

	wantYear, wantMonth := Cutoff(time.Now())
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, wantYear, store.year)
	assert.Equal(t, wantMonth, store.month)
}

func TestRunSurvivesStoreFailure(t *testing.T) {
	store := &recordingExpiryStore{err: errors.New("connection refused")}
	sweeper := NewExpirySweeper(store, quietLogger())

	assert.NotPanics(t, sweeper.Run)
	assert.Equal(t, 1, store.calls)
}
