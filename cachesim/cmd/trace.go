package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/mem/cache"
)

// A traceOp is one line of a trace.
type traceOp struct {
	Op          string `yaml:"op"`
	Address     string `yaml:"address"`
	Value       string `yaml:"value"`
	WritePolicy string `yaml:"writePolicy"`
	MissPolicy  string `yaml:"missPolicy"`
}

// A traceStep is a parsed traceOp.
type traceStep struct {
	kind        byte
	address     uint64
	value       byte
	writePolicy cache.WritePolicy
	missPolicy  cache.WriteMissPolicy
}

const (
	stepRead  = 'R'
	stepWrite = 'W'
	stepFlush = 'F'
)

var errBadTrace = errors.New("bad trace")

// parseTextTrace reads one access per line:
//
//	R <address>
//	W <address> <value> [writePolicy [missPolicy]]
//	F
//
// Blank lines and lines starting with # are skipped.
func parseTextTrace(r io.Reader) ([]traceStep, error) {
	var steps []traceStep

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		op := traceOp{Op: fields[0]}

		if len(fields) > 1 {
			op.Address = fields[1]
		}

		if len(fields) > 2 {
			op.Value = fields[2]
		}

		if len(fields) > 3 {
			op.WritePolicy = fields[3]
		}

		if len(fields) > 4 {
			op.MissPolicy = fields[4]
		}

		if len(fields) > 5 {
			return nil, fmt.Errorf("%w: line %d: too many fields",
				errBadTrace, lineNo)
		}

		step, err := op.parse()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		steps = append(steps, step)
	}

	return steps, scanner.Err()
}

// parseYAMLTrace reads a YAML list of traceOps.
func parseYAMLTrace(r io.Reader) ([]traceStep, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var ops []traceOp

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&ops); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", errBadTrace, err)
	}

	steps := make([]traceStep, 0, len(ops))
	for i, op := range ops {
		step, err := op.parse()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		steps = append(steps, step)
	}

	return steps, nil
}

func (op traceOp) parse() (traceStep, error) {
	var (
		step traceStep
		err  error
	)

	switch strings.ToUpper(op.Op) {
	case "R", "READ":
		step.kind = stepRead
	case "W", "WRITE":
		step.kind = stepWrite
	case "F", "FLUSH":
		step.kind = stepFlush
		return step, nil
	default:
		return step, fmt.Errorf("%w: unknown operation %q", errBadTrace, op.Op)
	}

	if step.address, err = cache.ParseAddress(op.Address); err != nil {
		return step, err
	}

	if step.kind == stepRead {
		return step, nil
	}

	if step.value, err = cache.ParseValue(op.Value); err != nil {
		return step, fmt.Errorf("%w: %w", errBadTrace, err)
	}

	if op.WritePolicy != "" {
		if step.writePolicy, err = cache.ParseWritePolicy(op.WritePolicy); err != nil {
			return step, err
		}
	}

	if op.MissPolicy != "" {
		if step.missPolicy, err = cache.ParseWriteMissPolicy(op.MissPolicy); err != nil {
			return step, err
		}
	}

	return step, nil
}
