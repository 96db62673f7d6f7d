package lib

import (
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/TecharoHQ/captchamodal/lib/backend"
	"github.com/TecharoHQ/captchamodal/lib/challenge"
)

func TestServerClientTCP(t *testing.T) {
	base, hc := serverClient("https://door.casdoor.com")
	if base != "https://door.casdoor.com" {
		t.Errorf("base URL changed: %s", base)
	}

	if hc.Transport != nil {
		t.Error("tcp servers should use the default transport")
	}
}

func TestServerClientUnix(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "casdoor.sock")

	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("can't listen on unix socket: %v", err)
	}

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","data":{"type":"none"}}`)
	})}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	base, hc := serverClient("unix:" + sock)

	client, err := backend.New(base, hc)
	if err != nil {
		t.Fatal(err)
	}

	desc, err := client.GetCaptcha(t.Context(), "admin", "app-built-in", false)
	if err != nil {
		t.Fatal(err)
	}

	if desc.Type != challenge.TypeNone {
		t.Errorf("wanted none, got %q", desc.Type)
	}
}

func TestWidgetPageURL(t *testing.T) {
	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer tcp.Close()

	if got, want := widgetPageURL(tcp), "http://"+tcp.Addr().String()+"/"; got != want {
		t.Errorf("wanted %s, got %s", want, got)
	}

	sock := filepath.Join(t.TempDir(), "widgets.sock")
	unix, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("can't listen on unix socket: %v", err)
	}
	defer unix.Close()

	if got, want := widgetPageURL(unix), "unix:"+sock; got != want {
		t.Errorf("wanted %s, got %s", want, got)
	}
}
