package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIndexesRunsEveryCollection(t *testing.T) {
	var called []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			called = append(called, name)
			return nil
		}
	}

	err := ensureIndexes(context.Background(), map[string]func(context.Context) error{
		"notifications": record("notifications"),
		"assignment":    record("assignment"),
		"leads":         record("leads"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"assignment", "leads", "notifications"}, called)
}

func TestEnsureIndexesStopsOnFailure(t *testing.T) {
	boom := errors.New("not primary")
	calls := 0

	err := ensureIndexes(context.Background(), map[string]func(context.Context) error{
		"assignment": func(context.Context) error { calls++; return boom },
		"leads":      func(context.Context) error { calls++; return nil },
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "assignment indexes")
	assert.Equal(t, 1, calls)
}
