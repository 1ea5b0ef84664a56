package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNotifySystemd_NotRunningUnderSystemd(t *testing.T) {
	tests := []struct {
		name    string
		socket  string
		unset   bool
		wantErr string
	}{
		{name: "variable unset", unset: true, wantErr: "NOTIFY_SOCKET not set"},
		{name: "variable empty", socket: "", wantErr: "NOTIFY_SOCKET not set"},
		{name: "socket path does not exist", socket: "nonexistent.sock", wantErr: "dial failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv restores the original value on cleanup, so the
			// unset case can drop the variable entirely afterwards.
			t.Setenv("NOTIFY_SOCKET", "")
			switch {
			case tt.unset:
				os.Unsetenv("NOTIFY_SOCKET")
			case tt.socket != "":
				t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), tt.socket))
			}

			err := notifySystemd()
			if err == nil {
				t.Fatal("notifySystemd() = nil, want error outside systemd")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestNotifySystemd_SendsReadyDatagram(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(context.Background(), "unixgram", sockPath)
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	defer func() { _ = conn.Close() }()

	t.Setenv("NOTIFY_SOCKET", sockPath)

	if err := notifySystemd(); err != nil {
		t.Fatalf("notifySystemd() = %v, want nil", err)
	}

	// Readiness must arrive as a single datagram holding exactly READY=1.
	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read from socket: %v", err)
	}
	if got := string(buf[:n]); got != "READY=1" {
		t.Errorf("payload = %q, want %q", got, "READY=1")
	}
}
