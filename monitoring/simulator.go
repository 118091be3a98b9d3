package monitoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/mem/cache"
)

type errorRsp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	dieOnErr(err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encodeErr := json.NewEncoder(w).Encode(errorRsp{Error: err.Error()})
	dieOnErr(encodeErr)
}

// statusOf maps cache errors to HTTP status codes. Caller mistakes are 400s.
func statusOf(err error) int {
	switch {
	case errors.Is(err, cache.ErrInvalidAddress),
		errors.Is(err, cache.ErrInvalidValue),
		errors.Is(err, cache.ErrInvalidConfig),
		errors.Is(err, cache.ErrUnknownPolicy),
		errors.Is(err, errBadParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadParam = errors.New("bad parameter")

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", errBadParam, name)
	}

	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s, err := requiredParam(r, name)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadParam, name, s)
	}

	return v, nil
}

func (m *Monitor) parseConfig(r *http.Request) (cache.Config, error) {
	c := m.cache.Config()
	q := r.URL.Query()

	var err error

	if c.CacheSizeBytes, err = intParam(r, "cacheSizeBytes"); err != nil {
		return c, err
	}

	if c.BlockSizeBytes, err = intParam(r, "blockSize"); err != nil {
		return c, err
	}

	if c.Associativity, err = intParam(r, "associativity"); err != nil {
		return c, err
	}

	policy, err := requiredParam(r, "replacementPolicy")
	if err != nil {
		return c, err
	}

	if c.ReplacementPolicy, err = cache.ParseReplacementPolicy(policy); err != nil {
		return c, err
	}

	if s := q.Get("writePolicy"); s != "" {
		if c.WritePolicy, err = cache.ParseWritePolicy(s); err != nil {
			return c, err
		}
	}

	if s := q.Get("missPolicy"); s != "" {
		if c.WriteMissPolicy, err = cache.ParseWriteMissPolicy(s); err != nil {
			return c, err
		}
	}

	if s := q.Get("resetStats"); s != "" {
		if c.ResetStatsOnReconfigure, err = strconv.ParseBool(s); err != nil {
			return c, fmt.Errorf("%w: resetStats=%q", errBadParam, s)
		}
	}

	return c, nil
}

func (m *Monitor) configure(w http.ResponseWriter, r *http.Request) {
	c, err := m.parseConfig(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	if err := m.cache.Reconfigure(c); err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, m.cache.State())
}

func addressParam(r *http.Request) (uint64, error) {
	s, err := requiredParam(r, "address")
	if err != nil {
		return 0, err
	}

	return cache.ParseAddress(s)
}

func (m *Monitor) read(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	result, err := m.cache.Read(addr)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, result)
}

func (m *Monitor) parseWrite(r *http.Request) (
	addr uint64,
	value byte,
	wp cache.WritePolicy,
	wmp cache.WriteMissPolicy,
	err error,
) {
	if addr, err = addressParam(r); err != nil {
		return
	}

	s, err := requiredParam(r, "value")
	if err != nil {
		return
	}

	if value, err = cache.ParseValue(s); err != nil {
		return
	}

	q := r.URL.Query()
	if p := q.Get("writePolicy"); p != "" {
		if wp, err = cache.ParseWritePolicy(p); err != nil {
			return
		}
	}

	if p := q.Get("missPolicy"); p != "" {
		if wmp, err = cache.ParseWriteMissPolicy(p); err != nil {
			return
		}
	}

	return addr, value, wp, wmp, nil
}

func (m *Monitor) write(w http.ResponseWriter, r *http.Request) {
	addr, value, wp, wmp, err := m.parseWrite(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	result, err := m.cache.Write(addr, value, wp, wmp)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, result)
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.cache.State())
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.cache.Stats())
}

func (m *Monitor) flush(w http.ResponseWriter, _ *http.Request) {
	result := m.cache.Flush()

	logrus.WithFields(logrus.Fields{
		"cache":   m.cache.Name(),
		"flushed": result.FlushedBlocks,
	}).Debug("cache flushed")

	writeJSON(w, result)
}

func (m *Monitor) listHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.history.list())
}
