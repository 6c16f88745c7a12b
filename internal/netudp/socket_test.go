package netudp

import (
	"net"
	"testing"
	"time"
)

func loopback(port uint16) Endpoint {
	return Endpoint{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestBindAssignsKernelPort(t *testing.T) {
	sock, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer sock.Close()

	if sock.LocalEndpoint().Port == 0 {
		t.Fatal("expected a non-zero kernel-assigned port")
	}
}

func TestSendToRecvFromRoundTrip(t *testing.T) {
	a, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind a: %v", err)
	}
	defer a.Close()

	b, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind b: %v", err)
	}
	defer b.Close()

	msg := []byte("hello tunnel")
	if _, err := a.SendTo(msg, b.LocalEndpoint()); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	buf := make([]byte, 2048)
	if err := b.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	n, from, err := b.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
	if from.Port != a.LocalEndpoint().Port {
		t.Fatalf("got sender port %d, want %d", from.Port, a.LocalEndpoint().Port)
	}
}

func TestPollTimesOutWithoutConsumingData(t *testing.T) {
	a, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind a: %v", err)
	}
	defer a.Close()

	status, err := a.Poll(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status != PollTimeout {
		t.Fatalf("got %v, want PollTimeout", status)
	}
}

func TestPollThenRecvFromSeesSameDatagram(t *testing.T) {
	a, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind a: %v", err)
	}
	defer a.Close()

	b, err := Bind(loopback(0), true)
	if err != nil {
		t.Fatalf("Bind b: %v", err)
	}
	defer b.Close()

	msg := []byte("poll-then-recv")
	if _, err := a.SendTo(msg, b.LocalEndpoint()); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var status PollStatus
	for time.Now().Before(deadline) {
		status, err = b.Poll(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if status == PollReady {
			break
		}
	}
	if status != PollReady {
		t.Fatal("expected PollReady before deadline")
	}

	buf := make([]byte, 2048)
	n, _, err := b.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("Poll consumed or corrupted the datagram: got %q, want %q", buf[:n], msg)
	}
}
