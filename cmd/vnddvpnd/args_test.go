package main

import (
	"net"
	"testing"
)

func TestParseArgsSingleTunnel(t *testing.T) {
	cfg, err := parseArgs([]string{"-tunnel", "tap0", "10.0.0.1", "5000", "10.0.0.2", "5001"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(cfg.Tunnels) != 1 {
		t.Fatalf("expected 1 tunnel, got %d", len(cfg.Tunnels))
	}
	ta := cfg.Tunnels[0]
	if ta.Name != "tap0" {
		t.Errorf("Name = %q, want tap0", ta.Name)
	}
	if !ta.Local.Equal(net.ParseIP("10.0.0.1")) || ta.LocalPort != 5000 {
		t.Errorf("local endpoint wrong: %v:%d", ta.Local, ta.LocalPort)
	}
	if !ta.Remote.Equal(net.ParseIP("10.0.0.2")) || ta.RemotePort != 5001 {
		t.Errorf("remote endpoint wrong: %v:%d", ta.Remote, ta.RemotePort)
	}
	if ta.Password != "" {
		t.Errorf("Password = %q, want empty", ta.Password)
	}
	if cfg.CdevPath != defaultCdevPath {
		t.Errorf("CdevPath = %q, want default %q", cfg.CdevPath, defaultCdevPath)
	}
}

func TestParseArgsTunnelWithPassword(t *testing.T) {
	cfg, err := parseArgs([]string{"-tunnel", "tap0", "10.0.0.1", "5000", "10.0.0.2", "5001", "-pwd", "secret"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Tunnels[0].Password != "secret" {
		t.Errorf("Password = %q, want secret", cfg.Tunnels[0].Password)
	}
}

func TestParseArgsMultipleTunnels(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-tunnel", "tap0", "10.0.0.1", "5000", "10.0.0.2", "5001",
		"-tunnel", "tap1", "10.0.1.1", "6000", "10.0.1.2", "6001", "-pwd", "pw1",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(cfg.Tunnels) != 2 {
		t.Fatalf("expected 2 tunnels, got %d", len(cfg.Tunnels))
	}
	if cfg.Tunnels[1].Name != "tap1" || cfg.Tunnels[1].Password != "pw1" {
		t.Errorf("second tunnel wrong: %+v", cfg.Tunnels[1])
	}
}

func TestParseArgsDuplicateIfnameRejected(t *testing.T) {
	_, err := parseArgs([]string{
		"-tunnel", "tap0", "10.0.0.1", "5000", "10.0.0.2", "5001",
		"-tunnel", "tap0", "10.0.1.1", "6000", "10.0.1.2", "6001",
	})
	if err == nil {
		t.Fatal("expected error on duplicate ifname, got nil")
	}
}

func TestParseArgsCdevConfigDaemonize(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-cdev", "/tmp/custom.sock",
		"-config", "/etc/vnddvpnd.yaml",
		"-daemonize",
		"-tunnel", "tap0", "10.0.0.1", "5000", "10.0.0.2", "5001",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.CdevPath != "/tmp/custom.sock" {
		t.Errorf("CdevPath = %q", cfg.CdevPath)
	}
	if cfg.ConfigPath != "/etc/vnddvpnd.yaml" {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
	if !cfg.Daemonize {
		t.Error("Daemonize = false, want true")
	}
}

func TestParseArgsMissingTunnelTokensFails(t *testing.T) {
	_, err := parseArgs([]string{"-tunnel", "tap0", "10.0.0.1", "5000"})
	if err == nil {
		t.Fatal("expected error for truncated -tunnel args")
	}
}

func TestParseArgsInvalidIPFails(t *testing.T) {
	_, err := parseArgs([]string{"-tunnel", "tap0", "not-an-ip", "5000", "10.0.0.2", "5001"})
	if err == nil {
		t.Fatal("expected error for invalid local_ip")
	}
}

func TestParseArgsInvalidPortFails(t *testing.T) {
	_, err := parseArgs([]string{"-tunnel", "tap0", "10.0.0.1", "notaport", "10.0.0.2", "5001"})
	if err == nil {
		t.Fatal("expected error for invalid local_port")
	}
}

func TestParseArgsUnknownFlagFails(t *testing.T) {
	_, err := parseArgs([]string{"-bogus"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParseArgsMissingCdevValueFails(t *testing.T) {
	_, err := parseArgs([]string{"-cdev"})
	if err == nil {
		t.Fatal("expected error for -cdev with no value")
	}
}

func TestToTunnelParams(t *testing.T) {
	ta := tunnelArg{
		Name:       "tap0",
		Local:      net.ParseIP("10.0.0.1"),
		LocalPort:  5000,
		Remote:     net.ParseIP("10.0.0.2"),
		RemotePort: 5001,
		Password:   "secret",
	}
	params, key := ta.toTunnelParams()
	if params.Name != "tap0" {
		t.Errorf("Name = %q", params.Name)
	}
	if !params.Local.IP.Equal(ta.Local) || params.Local.Port != 5000 {
		t.Errorf("Local = %+v", params.Local)
	}
	if !params.Remote.IP.Equal(ta.Remote) || params.Remote.Port != 5001 {
		t.Errorf("Remote = %+v", params.Remote)
	}
	if string(key) != "secret" {
		t.Errorf("key = %q, want secret", key)
	}
}

func TestToTunnelParamsNoPasswordYieldsNilKey(t *testing.T) {
	ta := tunnelArg{Name: "tap0", Local: net.ParseIP("10.0.0.1"), LocalPort: 5000, Remote: net.ParseIP("10.0.0.2"), RemotePort: 5001}
	_, key := ta.toTunnelParams()
	if key != nil {
		t.Errorf("key = %v, want nil", key)
	}
}
