// Command vnddctl is the control-plane client for a running vnddvpnd: it
// adds or removes virtual interfaces, or announces a frame to one, over
// the daemon's Unix control socket. Grounded on
// original_source/vpncfg/vndd_config.cc's add/remove grammar and defaults
// (mtu 1500, mac 02:00:00:00:00:00); cobra replaces the original's
// hand-rolled argv walk since each of this CLI's three verbs takes
// exactly one positional argument, so there is no positional-count
// ambiguity, the case args.go's parsing avoids.
package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/eantcal/vnddvpn/internal/cdev"
)

const (
	defaultMTU = 1500
	defaultMAC = "02:00:00:00:00:00"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vnddctl",
		Short: "Manage virtual interfaces on a running vnddvpnd",
	}
	root.AddCommand(newAddCmd(), newRemoveCmd(), newAnnounceCmd())
	return root
}

func newAddCmd() *cobra.Command {
	var cdevPath, mac string
	var mtu int
	var noARP bool

	cmd := &cobra.Command{
		Use:   "add <ifname>",
		Short: "Register a virtual interface on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			hwAddr, err := net.ParseMAC(mac)
			if err != nil {
				return fmt.Errorf("vnddctl: invalid mac %q: %w", mac, err)
			}
			var macArr [6]byte
			copy(macArr[:], hwAddr)

			client := cdev.NewClient(cdevPath)
			if err := client.AddIf(name, macArr, uint32(mtu), !noARP); err != nil {
				return fmt.Errorf("vnddctl: failed to create interface %q (mac=%q, mtu=%d): %w", name, mac, mtu, err)
			}
			fmt.Printf("vnddctl: interface %q (mac=%q, mtu=%d) has been successfully created\n", name, mac, mtu)
			return nil
		},
	}

	cmd.Flags().StringVar(&cdevPath, "cdev", cdev.DefaultSocketPath, "control socket path")
	cmd.Flags().StringVar(&mac, "mac", defaultMAC, "hardware address for the new interface")
	cmd.Flags().IntVar(&mtu, "mtu", defaultMTU, "MTU for the new interface")
	cmd.Flags().BoolVar(&noARP, "no-arp", false, "clear the enable-ARP field of the add request (vnddvpnd does not act on it)")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var cdevPath string

	cmd := &cobra.Command{
		Use:   "remove <ifname>",
		Short: "Tear down a virtual interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			client := cdev.NewClient(cdevPath)
			if err := client.RemoveIf(name); err != nil {
				return fmt.Errorf("vnddctl: failed to remove interface %q: %w", name, err)
			}
			fmt.Printf("vnddctl: interface %q has been successfully deleted\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&cdevPath, "cdev", cdev.DefaultSocketPath, "control socket path")
	return cmd
}

func newAnnounceCmd() *cobra.Command {
	var cdevPath, file string

	cmd := &cobra.Command{
		Use:   "announce <ifname>",
		Short: "Inject a raw Ethernet frame into a virtual interface",
		Long: "Inject a raw Ethernet frame into a virtual interface managed by the\n" +
			"running daemon. The frame is read from --file, or from stdin when\n" +
			"--file is omitted, and truncated to the Ethernet frame size if longer.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("vnddctl: open %q: %w", file, err)
				}
				defer f.Close()
				in = f
			}
			payload, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("vnddctl: read frame: %w", err)
			}
			if n := cdev.TruncatedLen(payload); n > 0 {
				fmt.Fprintf(os.Stderr, "vnddctl: frame for %q exceeds the Ethernet frame size, truncating %d bytes\n", name, n)
			}

			client := cdev.NewClient(cdevPath)
			if err := client.Announce(name, payload); err != nil {
				return fmt.Errorf("vnddctl: failed to announce frame to %q: %w", name, err)
			}
			fmt.Printf("vnddctl: frame announced to %q (%d bytes)\n", name, len(payload))
			return nil
		},
	}

	cmd.Flags().StringVar(&cdevPath, "cdev", cdev.DefaultSocketPath, "control socket path")
	cmd.Flags().StringVar(&file, "file", "", "path to the raw Ethernet frame to inject (default: stdin)")
	return cmd
}
