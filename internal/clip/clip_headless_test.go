package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadless(t *testing.T) {
	b := NewHeadless()
	defer b.Close()

	_, err := b.ReadText()
	assert.ErrorIs(t, err, ErrNoText)

	require.NoError(t, b.WriteText("hello"))
	select {
	case <-b.Watch():
	default:
		t.Fatal("write did not signal watchers")
	}

	got, err := b.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestHeadlessSignalsCoalesce(t *testing.T) {
	b := NewHeadless()
	require.NoError(t, b.WriteText("a"))
	require.NoError(t, b.WriteText("b"))

	<-b.Watch()
	select {
	case <-b.Watch():
		t.Fatal("expected a single pending signal")
	default:
	}
	got, _ := b.ReadText()
	assert.Equal(t, "b", got)
}
