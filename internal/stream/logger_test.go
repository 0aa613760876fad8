package stream

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusAdapter_InfoStaysBelowInfoLevel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	adapter := NewLogrusAdapter(logrus.NewEntry(logger)).With(watermill.LogFields{"topic": "show.101"})

	for i := 0; i < 100; i++ {
		adapter.Info("Publishing message", watermill.LogFields{"message_uuid": i})
	}
	assert.Empty(t, hook.AllEntries())

	adapter.Error("sending message failed", errors.New("closed"), nil)
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "show.101", entry.Data["topic"])

	logger.SetLevel(logrus.DebugLevel)
	adapter.Info("Subscribing", nil)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
