// Argument parsing, ported from original_source/vpn/vndd_vpnd.cc's
// parse_param: a positional argv walk rather than a flag library, since
// -tunnel consumes five fixed positional tokens plus an optional
// "-pwd <password>" pair — a grammar flag.Var/pflag can't express.
package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/eantcal/vnddvpn/internal/cdev"
	"github.com/eantcal/vnddvpn/internal/tunnel"
)

// tunnelArg is one -tunnel occurrence, resolved to bindable endpoints.
type tunnelArg struct {
	Name     string
	Local    net.IP
	LocalPort uint16
	Remote   net.IP
	RemotePort uint16
	Password string
}

// config is the fully parsed command line.
type config struct {
	Tunnels     []tunnelArg
	CdevPath    string
	ConfigPath  string
	Daemonize   bool
	DebugAddr   string
}

const defaultCdevPath = cdev.DefaultSocketPath

func parseArgs(argv []string) (*config, error) {
	cfg := &config{}
	seen := make(map[string]bool)

	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "-cdev":
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("args: -cdev requires a path")
			}
			i++
			cfg.CdevPath = argv[i]

		case "-config":
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("args: -config requires a path")
			}
			i++
			cfg.ConfigPath = argv[i]

		case "-daemonize":
			cfg.Daemonize = true

		case "-debug-addr":
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("args: -debug-addr requires a listen address")
			}
			i++
			cfg.DebugAddr = argv[i]

		case "-tunnel":
			if i+5 >= len(argv) {
				return nil, fmt.Errorf("args: -tunnel requires ifname local_ip local_port remote_ip remote_port")
			}
			ta := tunnelArg{Name: argv[i+1]}

			localIP := net.ParseIP(argv[i+2])
			if localIP == nil {
				return nil, fmt.Errorf("args: invalid local_ip %q", argv[i+2])
			}
			ta.Local = localIP

			localPort, err := strconv.ParseUint(argv[i+3], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("args: invalid local_port %q: %w", argv[i+3], err)
			}
			ta.LocalPort = uint16(localPort)

			remoteIP := net.ParseIP(argv[i+4])
			if remoteIP == nil {
				return nil, fmt.Errorf("args: invalid remote_ip %q", argv[i+4])
			}
			ta.Remote = remoteIP

			remotePort, err := strconv.ParseUint(argv[i+5], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("args: invalid remote_port %q: %w", argv[i+5], err)
			}
			ta.RemotePort = uint16(remotePort)
			i += 5

			if i+2 < len(argv) && argv[i+1] == "-pwd" {
				ta.Password = argv[i+2]
				i += 2
			}

			if seen[ta.Name] {
				return nil, fmt.Errorf("args: reuse of ifname %q not allowed", ta.Name)
			}
			seen[ta.Name] = true
			cfg.Tunnels = append(cfg.Tunnels, ta)

		default:
			return nil, fmt.Errorf("args: invalid argument %q", argv[i])
		}
	}

	if cfg.CdevPath == "" {
		cfg.CdevPath = defaultCdevPath
	}

	return cfg, nil
}

// toTunnelParams converts a tunnelArg into the tunnel.Params the
// supervisor expects.
func (ta tunnelArg) toTunnelParams() (tunnel.Params, []byte) {
	params := tunnel.Params{
		Name: ta.Name,
	}
	params.Local.IP = ta.Local
	params.Local.Port = ta.LocalPort
	params.Remote.IP = ta.Remote
	params.Remote.Port = ta.RemotePort

	var key []byte
	if ta.Password != "" {
		key = []byte(ta.Password)
	}
	return params, key
}

func usage() string {
	return `vnddvpnd -tunnel <tunnel_param> [-tunnel <tunnel_param>, ...] [-cdev <path>] [-config <path>] [-daemonize] [-debug-addr <host:port>]
Where
	<tunnel_param> = if_name local_ip local_port remote_ip remote_port [-pwd <password>]

	default <cdev path> = '` + defaultCdevPath + `'
	-debug-addr, if given, serves per-interface counters at GET /metrics
`
}
