package hooking

import (
	"github.com/sirupsen/logrus"
)

// LogHook writes every hook invocation to a logrus logger.
type LogHook struct {
	logger *logrus.Logger
	level  logrus.Level
}

// NewLogHook creates a LogHook that logs at the given level. A nil logger
// means the standard logrus logger.
func NewLogHook(logger *logrus.Logger, level logrus.Level) *LogHook {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &LogHook{
		logger: logger,
		level:  level,
	}
}

// Func logs the position and the item of the context.
func (h *LogHook) Func(ctx HookCtx) {
	if !h.logger.IsLevelEnabled(h.level) {
		return
	}

	entry := h.logger.WithField("pos", ctx.Pos.Name)
	if ctx.Detail != nil {
		entry = entry.WithField("detail", ctx.Detail)
	}

	entry.Logf(h.level, "%+v", ctx.Item)
}
