package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

const cacheName = "Cache"

// buildCache builds the cache of a command. Every access is logged at debug
// level. If recordPath is set, accesses are also recorded to
// recordPath.sqlite3 and the recording is flushed at exit.
func buildCache(c cache.Config, recordPath string) (*cache.Comp, error) {
	b := cache.MakeBuilder().
		WithConfig(c).
		WithHook(hooking.NewLogHook(logrus.StandardLogger(), logrus.DebugLevel))

	if err := c.Validate(); err != nil {
		return nil, err
	}

	var recorder *datarecording.AccessRecorder

	if recordPath != "" {
		dataRecorder, err := datarecording.Open(recordPath)
		if err != nil {
			return nil, err
		}

		recorder = datarecording.NewAccessRecorder(dataRecorder)

		execRecorder := datarecording.NewExecRecorder(dataRecorder)
		execRecorder.Start()
		atexit.Register(execRecorder.End)

		b = b.WithHook(recorder)
	}

	comp, err := b.Build(cacheName)
	if err != nil {
		return nil, err
	}

	if recorder != nil {
		recorder.RecordConfig(comp.Name(), comp.Config())
	}

	logrus.WithFields(logrus.Fields{
		"size":          c.CacheSizeBytes,
		"blockSize":     c.BlockSizeBytes,
		"associativity": c.Associativity,
		"numSets":       c.NumSets(),
		"replacement":   c.ReplacementPolicy,
		"writePolicy":   c.WritePolicy,
		"missPolicy":    c.WriteMissPolicy,
	}).Info("cache built")

	return comp, nil
}
