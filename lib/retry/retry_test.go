package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/lib/retry"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func fastPolicy(maxAttempts uint) retry.Policy {
	return retry.Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond * 2,
		Multiplier:      2,
		Retryable: func(err error) bool {
			return errors.Is(err, errTransient)
		},
	}
}

func TestDo(t *testing.T) {
	tests := map[string]struct {
		maxAttempts      uint
		failures         []error
		expectedAttempts int
		expectedErr      error
		expectedRetries  int
	}{
		"succeeds first time": {
			maxAttempts:      3,
			expectedAttempts: 1,
		},
		"succeeds after transient failures": {
			maxAttempts:      3,
			failures:         []error{errTransient, errTransient},
			expectedAttempts: 3,
			expectedRetries:  2,
		},
		"gives up after max attempts": {
			maxAttempts:      3,
			failures:         []error{errTransient, errTransient, errTransient, errTransient},
			expectedAttempts: 3,
			expectedErr:      errTransient,
			expectedRetries:  2,
		},
		"non retryable error is not retried": {
			maxAttempts:      5,
			failures:         []error{errFatal},
			expectedAttempts: 1,
			expectedErr:      errFatal,
		},
		"zero attempts means a single attempt": {
			failures:         []error{errTransient},
			expectedAttempts: 1,
			expectedErr:      errTransient,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var attempts, retries int
			policy := fastPolicy(tc.maxAttempts).WithOnRetry(func(error, time.Duration) {
				retries++
			})

			err := policy.Do(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= len(tc.failures) {
					return tc.failures[attempts-1]
				}
				return nil
			})
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expectedAttempts, attempts)
			assert.Equal(t, tc.expectedRetries, retries)
		})
	}
}

func TestValue(t *testing.T) {
	var attempts int
	v, err := retry.Value(context.Background(), fastPolicy(4), func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy(10)
	policy.InitialInterval = time.Hour
	policy.MaxInterval = time.Hour

	var attempts int
	err := policy.Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
