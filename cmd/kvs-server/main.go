// Command kvs-server starts the networked key-value store: it opens a data
// directory against the requested storage engine, binds a TCP listener,
// and serves the framed protocol until terminated.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/kvs/pkg/config"
	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/dd0wney/kvs/pkg/engine/adapter"
	"github.com/dd0wney/kvs/pkg/lse"
	"github.com/dd0wney/kvs/pkg/metrics"
	"github.com/dd0wney/kvs/pkg/pool"
	"github.com/dd0wney/kvs/pkg/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "IP:PORT to listen on")
	engineName := flag.String("engine", "kvs", `storage engine: "kvs" or "sled"`)
	threadPool := flag.String("thread-pool", "shared_queue", "naive, shared_queue, or work_stealing")
	workerNum := flag.Int("worker-num", 8, "worker count for shared_queue/work_stealing pools")
	dataDir := flag.String("data", "./data", "data directory")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	flag.Parse()

	log.Printf("kvs-server starting: engine=%s addr=%s data=%s", *engineName, *addr, *dataDir)

	requested := config.Engine(*engineName)
	if requested != config.KVS && requested != config.Sled {
		log.Fatalf("invalid engine %q: must be \"kvs\" or \"sled\"", *engineName)
	}

	chosen, err := config.EnsureEngine(*dataDir, requested)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Wrong engine")
		log.Printf("config: %v", err)
		os.Exit(1)
	}

	eng, err := openEngine(chosen, *dataDir)
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}
	defer eng.Close()

	p := newPool(*threadPool, *workerNum)

	reg := metrics.DefaultRegistry()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *addr, err)
	}
	log.Printf("kvs-server listening on %s", *addr)

	srv := server.New(ln, eng, p, reg)
	gs := server.NewGracefulServer(srv, p)
	if err := gs.Start(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func openEngine(e config.Engine, dir string) (engine.Engine, error) {
	switch e {
	case config.Sled:
		return adapter.Open(dir)
	default:
		return lse.Open(dir)
	}
}

func newPool(kind string, workers int) pool.Pool {
	switch kind {
	case "naive":
		return pool.NewNaive()
	case "work_stealing":
		return pool.NewWorkStealing(workers)
	default:
		return pool.NewSharedQueue(workers)
	}
}

func serveMetrics(addr string, reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	log.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}
