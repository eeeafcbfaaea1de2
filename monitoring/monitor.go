// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/mem/hierarchy"
	"github.com/sarchlab/cachesim/monitoring/web"
	"github.com/sarchlab/cachesim/sim"
)

// A Target is a running simulation that can be inspected.
type Target interface {
	Now() sim.Cycle
	Levels() []hierarchy.LevelStats
	Level(name string) (hierarchy.LevelSnapshot, bool)
}

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	target     Target
	portNumber int
	idGen      sim.IDGenerator
	url        string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGen: sim.NewPrefixedIDGenerator("bar-"),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterTarget registers the simulation to inspect.
func (m *Monitor) RegisterTarget(t Target) {
	m.target = t
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
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

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/levels", m.listLevels)
	r.HandleFunc("/api/level/{name}", m.levelDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	r := m.router()

	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()

	return m.url
}

// OpenInBrowser opens the page of a started server in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.url == "" {
		return fmt.Errorf("monitoring server not started")
	}

	return browser.OpenURL(m.url)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.target.Now())
}

func (m *Monitor) listLevels(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.target.Levels())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) levelDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	snapshot, found := m.target.Level(name)
	if !found {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Level %s not found", name)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(snapshot)
	serializer.SetMaxDepth(3)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bytes, err := json.Marshal(m.progressBars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
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

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
