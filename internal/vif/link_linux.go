//go:build linux

package vif

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
)

// setLinkAddrMTU assigns a hardware address and MTU to a freshly
// created TAP device via "ip link set" invocations, operating on
// MAC/MTU instead of an IPv4 address since this layer never assigns
// host addressing.
func setLinkAddrMTU(name string, mac [6]byte, mtu int) error {
	if (mac != [6]byte{}) {
		addr := net.HardwareAddr(mac[:]).String()
		cmd := exec.Command("ip", "link", "set", "dev", name, "address", addr)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("vif: set mac %s on %s: %w (%s)", addr, name, err, out)
		}
	}

	cmd := exec.Command("ip", "link", "set", "dev", name, "mtu", strconv.Itoa(mtu))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("vif: set mtu %d on %s: %w (%s)", mtu, name, err, out)
	}
	return nil
}

func setLinkUp(name string) error {
	cmd := exec.Command("ip", "link", "set", "dev", name, "up")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("vif: bring up %s: %w (%s)", name, err, out)
	}
	return nil
}

func setLinkDown(name string) error {
	cmd := exec.Command("ip", "link", "set", "dev", name, "down")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("vif: bring down %s: %w (%s)", name, err, out)
	}
	return nil
}
