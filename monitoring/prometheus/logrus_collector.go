// Package prometheus bridges logrus into the process metrics: every log
// entry at info level or above increments a counter labeled with the
// entry's level and prefix.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type logrusCollector struct {
	counter *prometheus.CounterVec
}

const prefixKey = "prefix"

// NewLogrusCollector registers the log counter and returns a hook suitable
// for logrus.AddHook.
func NewLogrusCollector() logrus.Hook {
	counter := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "log_entries_total",
		Help: "Total number of log messages.",
	}, []string{"level", prefixKey})
	return &logrusCollector{
		counter: counter,
	}
}

// Fire is called on every log call and increments the per-level counter.
func (hook *logrusCollector) Fire(entry *logrus.Entry) error {
	prefix := "global"
	if prefixValue, ok := entry.Data[prefixKey]; ok {
		prefix = prefixValue.(string)
	}
	hook.counter.WithLabelValues(entry.Level.String(), prefix).Inc()
	return nil
}

// Levels reports the levels the hook subscribes to.
func (hook *logrusCollector) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}
