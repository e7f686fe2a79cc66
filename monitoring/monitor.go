// Package monitoring serves the state of a running HIST simulation over HTTP.
package monitoring

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sugawarayuuta/sonnet"
	"github.com/syifan/goseth"

	"github.com/sarchlab/histsim/timing/system"
)

// Monitor turns a simulation into a server that exposes the directory, the
// delivery queues and the run statistics.
type Monitor struct {
	system          *system.System
	portNumber      int
	profileDuration time.Duration
}

// NewMonitor creates a monitor for s.
func NewMonitor(s *system.System) *Monitor {
	return &Monitor{
		system:          s,
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a random
// free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber <= 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is reserved, using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/config", m.config)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/homes/{home:[0-9]+}", m.home)
	r.HandleFunc("/api/homes/{home:[0-9]+}/dump", m.dumpHome)
	r.HandleFunc("/api/queues/{node:[0-9]+}", m.queue)
	r.HandleFunc("/api/nodes/{node:[0-9]+}", m.node)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", actualPort, err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	router := m.Router()
	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	return url, nil
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.system.Engine().Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.system.Engine().Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.system.Now())
}

func (m *Monitor) config(w http.ResponseWriter, _ *http.Request) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.system.Config())
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type statsRsp struct {
	Cycles             uint64  `json:"cycles"`
	Accesses           uint64  `json:"accesses"`
	L1Hits             uint64  `json:"l1_hits"`
	L1Misses           uint64  `json:"l1_misses"`
	HomeMisses         uint64  `json:"home_misses"`
	Coalesced          uint64  `json:"coalesced"`
	DirectMisses       uint64  `json:"direct_misses"`
	Retries            uint64  `json:"retries"`
	Completed          uint64  `json:"completed"`
	AverageMissLatency float64 `json:"average_miss_latency"`
	CoalescingRate     float64 `json:"coalescing_rate"`
	Evictions          uint64  `json:"directory_evictions"`
	Deliveries         uint64  `json:"deliveries"`
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	r := m.system.Report()

	writeJSON(w, statsRsp{
		Cycles:             r.Cycles,
		Accesses:           r.Total.Accesses,
		L1Hits:             r.Total.L1Hits,
		L1Misses:           r.Total.L1Misses,
		HomeMisses:         r.Total.HomeMisses,
		Coalesced:          r.Total.Coalesced,
		DirectMisses:       r.Total.DirectMisses(),
		Retries:            r.Total.Retries,
		Completed:          r.Total.Completed,
		AverageMissLatency: r.AverageMissLatency(),
		CoalescingRate:     r.CoalescingRate(),
		Evictions:          r.Directory.Evictions,
		Deliveries:         r.Directory.Deliveries,
	})
}

func (m *Monitor) home(w http.ResponseWriter, r *http.Request) {
	home, ok := m.nodeOr404(w, r, "home")
	if !ok {
		return
	}

	writeJSON(w, m.system.Table().HomeSnapshot(home))
}

func (m *Monitor) dumpHome(w http.ResponseWriter, r *http.Request) {
	home, ok := m.nodeOr404(w, r, "home")
	if !ok {
		return
	}

	all := r.URL.Query().Get("all") == "true"

	w.Header().Set("Content-Type", "text/plain")
	err := m.system.Table().DumpHome(w, home, all)
	dieOnErr(err)
}

func (m *Monitor) queue(w http.ResponseWriter, r *http.Request) {
	node, ok := m.nodeOr404(w, r, "node")
	if !ok {
		return
	}

	writeJSON(w, m.system.Table().QueueSnapshot(node))
}

func (m *Monitor) node(w http.ResponseWriter, r *http.Request) {
	node, ok := m.nodeOr404(w, r, "node")
	if !ok {
		return
	}

	stats := m.system.Nodes()[node].Stats()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&stats)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) nodeOr404(
	w http.ResponseWriter,
	r *http.Request,
	key string,
) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[key])
	if err != nil || id < 0 || id >= len(m.system.Nodes()) {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Node not found"))
		dieOnErr(err)

		return 0, false
	}

	return id, true
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
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonnet.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
