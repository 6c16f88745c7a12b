package tunnel

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/eantcal/vnddvpn/internal/netudp"
)

func loopbackEndpoint() netudp.Endpoint {
	return netudp.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 0}
}

func TestNewBindsSocketAndStoresFields(t *testing.T) {
	remote := netudp.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	tun, err := New(Params{Name: "tap0", Local: loopbackEndpoint(), Remote: remote})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tun.Close()

	if tun.Name != "tap0" {
		t.Errorf("Name = %q, want tap0", tun.Name)
	}
	if tun.Local.Port == 0 {
		t.Error("Local.Port should be resolved to the ephemeral port chosen by the kernel")
	}
	if !tun.Remote.IP.Equal(remote.IP) || tun.Remote.Port != remote.Port {
		t.Errorf("Remote = %+v, want %+v", tun.Remote, remote)
	}
	if tun.Key != nil {
		t.Error("Key should be nil for a cleartext tunnel")
	}
}

func TestNewWithKeySetsAdjustedKey(t *testing.T) {
	tun, err := New(Params{Name: "tap0", Local: loopbackEndpoint(), Key: []byte("somekey!")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tun.Close()

	if tun.Key == nil {
		t.Fatal("Key should be set when Params.Key is non-empty")
	}
}

func TestNewRejectsNameTooLong(t *testing.T) {
	_, err := New(Params{Name: strings.Repeat("x", MaxNameLength+1), Local: loopbackEndpoint()})
	if err == nil {
		t.Fatal("expected error for over-length name")
	}
}

func TestRemovePendingDefaultsFalse(t *testing.T) {
	tun, err := New(Params{Name: "tap0", Local: loopbackEndpoint()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tun.Close()

	if tun.RemovePending() {
		t.Error("RemovePending() should start false")
	}
	tun.RequestRemove()
	if !tun.RemovePending() {
		t.Error("RemovePending() should be true after RequestRemove")
	}
}

func TestMarkDoneClosesDoneExactlyOnce(t *testing.T) {
	tun, err := New(Params{Name: "tap0", Local: loopbackEndpoint()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tun.Close()

	select {
	case <-tun.Done():
		t.Fatal("Done() should not be closed before MarkDone")
	default:
	}

	tun.MarkDone()
	tun.MarkDone() // must not panic on double-close

	select {
	case <-tun.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() did not close after MarkDone")
	}
}
