package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxRetentionJobUsesRetentionCutoff(t *testing.T) {
	repo := &fakeOutboxPurger{}
	job := newRetentionJob(t, repo, OutboxRetentionJobParams{})
	job.now = func() time.Time { return time.Date(2026, 2, 10, 8, 0, 0, 0, time.FixedZone("X", 3600)) }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.calls, 1)
	assert.Equal(t, time.Date(2026, 1, 11, 7, 0, 0, 0, time.UTC), repo.calls[0].cutoff)
	assert.Equal(t, defaultParkedAttempts, repo.calls[0].minAttempts)
	assert.Equal(t, defaultPurgeBatch, repo.calls[0].limit)
}

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	repo := &fakeOutboxPurger{results: []int64{3, 3, 1}}
	job := newRetentionJob(t, repo, OutboxRetentionJobParams{MinAttempts: 4, BatchSize: 3})

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.calls, 3)
	for _, call := range repo.calls {
		assert.Equal(t, 4, call.minAttempts)
		assert.Equal(t, 3, call.limit)
	}
}

func TestOutboxRetentionJobStopsOnCancel(t *testing.T) {
	repo := &fakeOutboxPurger{results: []int64{3, 3, 3, 3}}
	job := newRetentionJob(t, repo, OutboxRetentionJobParams{BatchSize: 3})
	ctx, cancel := context.WithCancel(context.Background())
	repo.afterCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Len(t, repo.calls, 2)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxPurger{err: errors.New("boom")}
	job := newRetentionJob(t, repo, OutboxRetentionJobParams{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox retention")
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{DB: passthroughTx{}, Repository: &fakeOutboxPurger{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), Repository: &fakeOutboxPurger{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), DB: passthroughTx{}})
	assert.Error(t, err)
}

func newRetentionJob(t *testing.T, repo *fakeOutboxPurger, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = testLogger()
	params.DB = passthroughTx{}
	params.Repository = repo
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

type purgeCall struct {
	cutoff      time.Time
	minAttempts int
	limit       int
}

type fakeOutboxPurger struct {
	calls     []purgeCall
	results   []int64
	afterCall func(n int)
	err       error
}

func (f *fakeOutboxPurger) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount, limit int) (int64, error) {
	f.calls = append(f.calls, purgeCall{cutoff: cutoff, minAttempts: minAttemptCount, limit: limit})
	if f.afterCall != nil {
		f.afterCall(len(f.calls))
	}
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
