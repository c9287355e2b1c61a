// File: internal/logging/logrus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// logrus setup and tag-scoped entries shared by every component.

package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var hookOnce sync.Once

// Setup configures the standard logrus logger.
func Setup(level string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	std := logrus.StandardLogger()
	std.SetLevel(lvl)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if out != nil {
		std.SetOutput(out)
	}
	hookOnce.Do(func() { std.AddHook(new(TaggedHook)) })
	return nil
}

// NewLogger returns an entry whose messages are prefixed with [tag].
func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger()).WithField("tag", tag)
}

// OrDefault returns l, or a fresh entry for tag when l is nil.
func OrDefault(l *logrus.Entry, tag string) *logrus.Entry {
	if l != nil {
		return l
	}
	return NewLogger(tag)
}

// TaggedHook moves the tag field into the message prefix.
type TaggedHook struct{}

func (h *TaggedHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *TaggedHook) Fire(entry *logrus.Entry) error {
	if tagObj, loaded := entry.Data["tag"]; loaded {
		tag, _ := tagObj.(string)
		delete(entry.Data, "tag")
		entry.Message = strings.ReplaceAll(entry.Message, tag+": ", "")
		entry.Message = "[" + tag + "]: " + entry.Message
	}
	return nil
}
