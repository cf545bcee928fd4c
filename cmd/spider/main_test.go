package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRequested(t *testing.T) {
	assert.True(t, shutdownRequested(context.Canceled))
	assert.True(t, shutdownRequested(fmt.Errorf("spider run: %w", context.Canceled)))
	assert.False(t, shutdownRequested(nil))
	assert.False(t, shutdownRequested(fmt.Errorf("connection refused")))
}
