package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTableName is the table that describes the run that produced a
// recording.
const ExecInfoTableName = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecInfo is one property of a run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the program ran.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
	now      func() time.Time
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecInfoTableName, ExecInfo{})

	return &ExecRecorder{
		recorder: recorder,
		now:      time.Now,
	}
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", e.now().Format(execTimeFormat)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// AddProperty notes an extra property of the run.
func (e *ExecRecorder) AddProperty(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes everything noted so far together with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTableName, entry)
	}

	e.recorder.InsertData(ExecInfoTableName,
		ExecInfo{"End Time", e.now().Format(execTimeFormat)})

	e.entries = nil

	e.recorder.Flush()
}
