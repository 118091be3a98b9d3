// Package monitoring serves a cache over HTTP so that a UI or a script can
// drive it and watch it.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/sim/id"
)

// DefaultHistorySize is the number of accesses kept for the history
// endpoint.
const DefaultHistorySize = 10

// Cache is the cache that a Monitor serves.
type Cache interface {
	hooking.Hookable

	Name() string
	Config() cache.Config
	Reconfigure(config cache.Config) error
	Read(addr uint64) (cache.AccessResult, error)
	Write(
		addr uint64,
		value byte,
		writePolicy cache.WritePolicy,
		missPolicy cache.WriteMissPolicy,
	) (cache.AccessResult, error)
	Flush() cache.FlushResult
	State() cache.CacheState
	Stats() cache.Statistics
}

// Monitor turns a cache into a server that allows external monitoring and
// controlling of the cache.
type Monitor struct {
	cache       Cache
	history     *accessHistory
	portNumber  int
	idGenerator id.IDGenerator

	profileDuration time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor for the cache. The monitor hooks into the
// cache to keep the access history.
func NewMonitor(c Cache) *Monitor {
	m := &Monitor{
		cache:           c,
		history:         newAccessHistory(DefaultHistorySize),
		idGenerator:     id.NewParallelIDGenerator(),
		profileDuration: time.Second,
	}

	c.AcceptHook(hooking.HookFunc(m.observe))

	return m
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		logrus.WithField("port", portNumber).
			Warn("port not allowed for the monitoring server, " +
				"using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithHistorySize sets how many accesses the history endpoint returns.
func (m *Monitor) WithHistorySize(size int) *Monitor {
	m.history = newAccessHistory(size)
	return m
}

func (m *Monitor) observe(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case cache.HookPosAccess:
		m.history.add(ctx.Item.(cache.AccessResult))
	case cache.HookPosReconfigure:
		m.history.clear()
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all the endpoints.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	// Registered on the root router, since a method mismatch inside a
	// subrouter is reported as 404 rather than 405.
	const api = "/api/simulator"
	r.HandleFunc(api+"/config", m.configure).Methods(http.MethodPost)
	r.HandleFunc(api+"/read", m.read).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(api+"/write", m.write).Methods(http.MethodPost)
	r.HandleFunc(api+"/state", m.state).Methods(http.MethodGet)
	r.HandleFunc(api+"/stats", m.stats).Methods(http.MethodGet)
	r.HandleFunc(api+"/flush", m.flush).Methods(http.MethodPost)
	r.HandleFunc(api+"/history", m.listHistory).Methods(http.MethodGet)

	r.HandleFunc("/api/component", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	r.HandleFunc("/debug/pprof/", httppprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", httppprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(httppprof.Index)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server. The server shuts down when the context is done.
func (m *Monitor) StartServer(ctx context.Context) (string, error) {
	actualPort := ":0"
	if m.portNumber != 0 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	logrus.WithFields(logrus.Fields{
		"cache": m.cache.Name(),
		"url":   url,
	}).Info("monitoring cache")

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("monitoring server shutdown")
		}
	}()

	return url, nil
}

type componentView struct {
	Name   string
	Config cache.Config
	Stats  cache.Statistics
	State  cache.CacheState
}

func (m *Monitor) snapshot() componentView {
	return componentView{
		Name:   m.cache.Name(),
		Config: m.cache.Config(),
		Stats:  m.cache.Stats(),
		State:  m.cache.State(),
	}
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, _ *http.Request) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.snapshot())
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.snapshot())
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
