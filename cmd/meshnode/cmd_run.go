package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hardikr439/BLE-communication/internal/bleradio"
	"github.com/Hardikr439/BLE-communication/internal/config"
	"github.com/Hardikr439/BLE-communication/internal/identity"
	"github.com/Hardikr439/BLE-communication/internal/store"
	"github.com/Hardikr439/BLE-communication/internal/telemetry"
	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

func runNode(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", "meshnode.yaml", "path to config file")
	simulateFlag := fs.Bool("simulate", false, "use the in-memory fake radio instead of real BLE hardware")
	fs.Parse(args)

	cfg, err := loadConfigOrDefaults(*configFlag)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if *simulateFlag {
		cfg.Mesh.Simulate = true
	}

	fmt.Printf("meshnode %s (%s)\n", version, commit)
	fmt.Println()

	st, err := openStore(cfg)
	if err != nil {
		fatal("Failed to open state store: %v", err)
	}

	nodeID, err := identity.LoadOrCreateNodeID(st)
	if err != nil {
		fatal("Failed to load node id: %v", err)
	}
	friendCode := mesh.NodeHashOf(nodeID).FriendCode()
	nickname := cfg.Identity.Nickname
	if nickname == "" {
		nickname = identity.LoadNickname(st, "Node-"+friendCode)
	}

	radio, err := openRadio(cfg)
	if err != nil {
		fatal("Failed to open radio: %v", err)
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		metrics = telemetry.NewMetrics(version, "")
		go serveMetrics(metrics, cfg.Telemetry.Metrics.ListenAddress)
	}

	scanMode := mesh.ScanModeBalanced
	if cfg.Mesh.ScanMode == "low_latency" {
		scanMode = mesh.ScanModeLowLatency
	}

	engine := mesh.NewEngine(mesh.Config{
		NodeID:          nodeID,
		Nickname:        nickname,
		BroadcastWindow: cfg.Mesh.BroadcastWindow,
		ScanMode:        scanMode,
	}, radio, metricsRecorder(metrics), st)

	fmt.Printf("Node ID:     %s\n", nodeID)
	fmt.Printf("Friend code: %s\n", friendCode)
	fmt.Printf("Nickname:    %s\n", nickname)
	fmt.Println()

	stopLog := logEvents(engine)
	defer stopLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		fatal("Engine stopped with error: %v", err)
	}
	fmt.Println("meshnode stopped.")
}

func loadConfigOrDefaults(path string) (*config.NodeConfig, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, config.ErrConfigNotFound) {
		return nil, err
	}
	return config.Default(), nil
}

func openStore(cfg *config.NodeConfig) (mesh.Store, error) {
	if cfg.Mesh.Simulate {
		return store.NewMemoryStore(), nil
	}
	path := cfg.Identity.StateFile
	if path == "" {
		path = "mesh-state.json"
	}
	return store.NewFileStore(path)
}

func openRadio(cfg *config.NodeConfig) (mesh.Radio, error) {
	if cfg.Mesh.Simulate {
		return bleradio.NewFakeRadio(bleradio.NewMedium(), "simulated"), nil
	}
	return bleradio.NewLinuxRadio()
}

func metricsRecorder(m *telemetry.Metrics) mesh.Recorder {
	if m == nil {
		return nil
	}
	return m
}

func serveMetrics(m *telemetry.Metrics, addr string) {
	if addr == "" {
		addr = "127.0.0.1:9091"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server stopped: %v\n", err)
	}
}

// logEvents subscribes to the engine's status and error streams and
// prints them to stdout/stderr until the returned cancel func runs.
func logEvents(e *mesh.Engine) func() {
	status, unsubStatus := e.Events().Status()
	errs, unsubErrors := e.Events().Errors()
	msgs, unsubMsgs := e.Events().Messages()
	directed, unsubDirected := e.Events().DirectedMessages()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case s, ok := <-status:
				if !ok {
					return
				}
				fmt.Printf("[status] %s\n", s)
			case s, ok := <-errs:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "[error] %s\n", s)
			case m, ok := <-msgs:
				if !ok {
					return
				}
				fmt.Printf("[%s] %s: %s\n", m.Type, m.Nickname, m.Content)
			case m, ok := <-directed:
				if !ok {
					return
				}
				fmt.Printf("[direct] %s: %s\n", m.Nickname, m.Content)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		unsubStatus()
		unsubErrors()
		unsubMsgs()
		unsubDirected()
	}
}
