// Command vnddvpnd is the VPN tunnel daemon: it multiplexes one or more
// encrypted UDP tunnels onto virtual network interfaces. Grounded on
// original_source/vpn/vndd_vpnd.cc's main (tunnel-config-map build loop,
// daemonize, wait_for_termination) for the overall flow, and built with
// a signal-channel + context-cancel + fatal-on-init-error shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eantcal/vnddvpn/internal/cdev"
	"github.com/eantcal/vnddvpn/internal/pidlock"
	"github.com/eantcal/vnddvpn/internal/supervisor"
	"github.com/eantcal/vnddvpn/internal/tunnelcfg"
	"github.com/eantcal/vnddvpn/internal/vif"
	"github.com/eantcal/vnddvpn/internal/vnddlog"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage())
		os.Exit(1)
	}

	var fileTunnels *tunnelcfg.Config
	if cfg.ConfigPath != "" {
		fileTunnels, err = tunnelcfg.LoadConfig(cfg.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vnddvpnd: %v\n", err)
			os.Exit(1)
		}
	}

	if len(cfg.Tunnels) == 0 && (fileTunnels == nil || len(fileTunnels.Tunnels) == 0) {
		fmt.Fprint(os.Stderr, usage())
		os.Exit(1)
	}

	if cfg.Daemonize {
		if err := daemonize(); err != nil {
			fmt.Fprintf(os.Stderr, "vnddvpnd: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := vnddlog.New("supervisor", vnddlog.INFO, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vnddvpnd: init logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	lock, err := pidlock.Acquire(pidlock.DefaultPath)
	if err != nil {
		log.Error("vnddvpnd: pid lock", vnddlog.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer lock.Release()

	a := vif.NewDefaultAdapter()
	defer a.Close()

	s := supervisor.New(a, log)

	for _, ta := range cfg.Tunnels {
		params, key := ta.toTunnelParams()
		if err := s.AddTunnel(ta.Name, params, key); err != nil {
			log.Warn("vnddvpnd: failed to add tunnel", vnddlog.Fields{"interface": ta.Name, "error": err.Error()})
			continue
		}
	}
	if fileTunnels != nil {
		for _, err := range s.LoadTunnelSet(fileTunnels) {
			log.Warn("vnddvpnd: failed to add tunnel from config", vnddlog.Fields{"error": err.Error()})
		}
	}

	if s.Empty() {
		log.Error("vnddvpnd: no tunnel instances specified", nil)
		os.Exit(1)
	}

	ctlHandler := &controlHandler{adapter: a, supervisor: s, log: log}
	ctl, err := cdev.Listen(cfg.CdevPath, ctlHandler, log)
	if err != nil {
		log.Error("vnddvpnd: control socket", vnddlog.Fields{"error": err.Error()})
		os.Exit(1)
	}
	go func() {
		if err := ctl.Serve(); err != nil {
			log.Debug("vnddvpnd: control socket closed")
		}
	}()
	defer ctl.Close()

	if cfg.DebugAddr != "" {
		if h := vif.NewStatsHandler(a); h != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", h)
			debugSrv := &http.Server{Addr: cfg.DebugAddr, Handler: mux}
			go func() {
				if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Warn("vnddvpnd: debug listener stopped", vnddlog.Fields{"error": err.Error()})
				}
			}()
			defer debugSrv.Close()
		} else {
			log.Warn("vnddvpnd: -debug-addr given but this vif backend exposes no stats", nil)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	log.Info("vnddvpnd: started", vnddlog.Fields{"tunnels": len(cfg.Tunnels)})
	<-sigCh
	log.Info("vnddvpnd: shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Warn("vnddvpnd: shutdown did not complete cleanly", vnddlog.Fields{"error": err.Error()})
	}
}

// controlHandler adapts the running daemon's vif adapter and supervisor
// to cdev.Handler, so cmd/vnddctl can add/remove interfaces on a live
// daemon via the control socket.
type controlHandler struct {
	adapter    vif.Adapter
	supervisor *supervisor.Supervisor
	log        *vnddlog.Logger
}

func (h *controlHandler) HandleAddIf(name string, mac [6]byte, mtu uint32, enableARP bool) error {
	return h.adapter.Register(vif.Config{Name: name, MAC: mac, MTU: int(mtu)})
}

func (h *controlHandler) HandleRemoveIf(name string) error {
	return h.adapter.Remove(name)
}

func (h *controlHandler) HandleAnnounce(name string, payload []byte) error {
	return h.adapter.Submit(name, payload)
}
