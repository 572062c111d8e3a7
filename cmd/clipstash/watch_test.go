package main

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPermanentWatchErrors(t *testing.T) {
	assert.True(t, permanent(status.Error(codes.InvalidArgument, "bad kind")))
	assert.True(t, permanent(status.Error(codes.Unauthenticated, "no token")))
	assert.False(t, permanent(status.Error(codes.Unavailable, "daemon restarting")))
	assert.False(t, permanent(errors.New("daemon closed the stream")))
}

func TestRunWatchRejectsUnknownKind(t *testing.T) {
	v := viper.New()
	v.Set("kinds", []string{"changed", "bogus"})
	v.Set("reconnect", true)

	err := runWatch(context.Background(), v)
	assert.ErrorContains(t, err, `"bogus"`)
}
