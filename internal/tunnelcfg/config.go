// Package tunnelcfg loads a YAML description of a set of tunnels to bring
// up at daemon startup, generalizing the source vpncfg/vpnd sibling
// relationship (a config file alongside repeated -tunnel flags) into a
// single loadable set, with a LoadConfig following the same
// read-unmarshal-default-validate shape (gopkg.in/yaml.v3).
package tunnelcfg

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eantcal/vnddvpn/internal/netudp"
)

// DefaultMTU and DefaultMAC mirror the source's vpncfg defaults
// (DEFAULT_MTU, DEFAULT_MAC).
const DefaultMTU = 1500

var DefaultMAC = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00}

// TunnelEntry describes one tunnel to construct at startup, as written in
// the YAML document.
type TunnelEntry struct {
	Name       string `yaml:"name"`
	LocalIP    string `yaml:"local_ip"`
	LocalPort  uint16 `yaml:"local_port"`
	RemoteIP   string `yaml:"remote_ip"`
	RemotePort uint16 `yaml:"remote_port"`
	Password   string `yaml:"password"`
	MAC        string `yaml:"mac"`
	MTU        int    `yaml:"mtu"`
}

// Config is the resolved result of LoadConfig: every tunnel entry parsed
// and validated, ready for Supervisor.LoadTunnelSet.
type Config struct {
	Tunnels []tunnelResolved
}

// tunnelResolved is what Supervisor.LoadTunnelSet actually consumes: a
// TunnelEntry with every field validated and parsed.
type tunnelResolved struct {
	Name   string
	Local  netudp.Endpoint
	Remote netudp.Endpoint
	Key    []byte
	MAC    [6]byte
	MTU    int
}

// LoadConfig reads, unmarshals, defaults, and validates path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tunnelcfg: read %q: %w", path, err)
	}

	var doc struct {
		Tunnels []TunnelEntry `yaml:"tunnels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tunnelcfg: parse %q: %w", path, err)
	}

	cfg := &Config{}
	for i := range doc.Tunnels {
		e := doc.Tunnels[i]
		e.setDefaults()
		resolved, err := e.resolve()
		if err != nil {
			return nil, fmt.Errorf("tunnelcfg: tunnel %q: %w", e.Name, err)
		}
		cfg.Tunnels = append(cfg.Tunnels, resolved)
	}
	return cfg, nil
}

func (e *TunnelEntry) setDefaults() {
	if e.MTU == 0 {
		e.MTU = DefaultMTU
	}
	if e.MAC == "" {
		e.MAC = net.HardwareAddr(DefaultMAC[:]).String()
	}
}

func (e *TunnelEntry) resolve() (tunnelResolved, error) {
	if e.Name == "" {
		return tunnelResolved{}, fmt.Errorf("missing name")
	}

	localIP := net.ParseIP(e.LocalIP)
	if localIP == nil {
		return tunnelResolved{}, fmt.Errorf("invalid local_ip %q", e.LocalIP)
	}
	remoteIP := net.ParseIP(e.RemoteIP)
	if remoteIP == nil {
		return tunnelResolved{}, fmt.Errorf("invalid remote_ip %q", e.RemoteIP)
	}

	mac, err := net.ParseMAC(e.MAC)
	if err != nil || len(mac) != 6 {
		return tunnelResolved{}, fmt.Errorf("invalid mac %q", e.MAC)
	}
	var macArr [6]byte
	copy(macArr[:], mac)

	r := tunnelResolved{
		Name:   e.Name,
		Local:  netudp.Endpoint{IP: localIP, Port: e.LocalPort},
		Remote: netudp.Endpoint{IP: remoteIP, Port: e.RemotePort},
		MAC:    macArr,
		MTU:    e.MTU,
	}
	if e.Password != "" {
		r.Key = []byte(e.Password)
	}
	return r, nil
}
