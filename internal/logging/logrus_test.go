package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaggedHookPrefixesMessage(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.AddHook(new(TaggedHook))

	logger.WithField("tag", "reactor").Info("reactor: loop started")

	line := out.String()
	assert.Contains(t, line, `msg="[reactor]: loop started"`)
	assert.NotContains(t, line, "tag=")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	require.Error(t, Setup("loud", nil))
	require.NoError(t, Setup("debug", nil))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	require.NoError(t, Setup("info", nil))
}

func TestOrDefault(t *testing.T) {
	l := NewLogger("x")
	assert.Same(t, l, OrDefault(l, "y"))
	assert.Equal(t, "y", OrDefault(nil, "y").Data["tag"])
}
