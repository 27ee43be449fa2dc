package server

import (
	"strings"
	"testing"

	"github.com/simroam/simroam/internal/notify/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEvent_FrameFormat(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, writeEvent(&buf, sse.Event{
		Type:    sse.EventOrderCompleted,
		OrderID: "42",
	}))

	frame := buf.String()
	assert.True(t, strings.HasPrefix(frame, "event: order-completed\n"))
	assert.Contains(t, frame, `"orderId":"42"`)
	assert.True(t, strings.HasSuffix(frame, "\n\n"))
}

func TestWritePing_NamedEvent(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, writePing(&buf))
	assert.Equal(t, "event: ping\ndata: {}\n\n", buf.String())
}
