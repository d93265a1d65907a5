package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpectedAllowed(t *testing.T) {
	require.EqualValues(t, 30, expectedAllowed(options{requests: 100, clients: 3, maxRequests: 10}))
	require.EqualValues(t, 7, expectedAllowed(options{requests: 7, clients: 3, maxRequests: 10}))
	require.EqualValues(t, 5, expectedAllowed(options{requests: 7, clients: 3, maxRequests: 2}))
}

func TestRunOnMiniredis(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, options{
		requests:    500,
		concurrency: 16,
		clients:     4,
		maxRequests: 20,
		window:      time.Hour,
		failures:    30,
		prefix:      "lt",
	})
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "allowed=80 lockouts=10: ok")
	require.True(t, strings.Contains(text, "gothrottle_rate_limit_allowed_total 80"), text)
}

func TestRunRejectsBadOptions(t *testing.T) {
	err := run(context.Background(), &bytes.Buffer{}, options{})
	require.True(t, Error.Has(err))
}
