package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robosim/sweeperboard/config"
	"github.com/robosim/sweeperboard/state"
)

const testPage = "<!DOCTYPE html><html><body>scoreboard</body></html>"

// startServer runs a full server on an ephemeral loopback port. The
// broadcast interval is set far out so tests control every send.
func startServer(t *testing.T, sink CodeSink) (*Server, *state.Store, string) {
	t.Helper()

	pagePath := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(pagePath, []byte(testPage), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.PagePath = pagePath
	cfg.BroadcastInterval = time.Hour

	if sink == nil {
		sink = &memSink{}
	}
	store := state.New()
	s := New(cfg, store, sink, zerolog.Nop())

	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := s.Serve(ctx); err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	}()

	return s, store, s.Addr()
}

func TestHTTPRouting(t *testing.T) {
	_, _, addr := startServer(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"root", "GET", "/", 200, testPage},
		{"index", "GET", "/index.html", 200, testPage},
		{"unknown path", "GET", "/metrics", 404, "Not found"},
		{"post", "POST", "/", 404, "Not found"},
		{"delete", "DELETE", "/index.html", 404, "Not found"},
	}

	client := &http.Client{Timeout: 2 * time.Second}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "http://"+addr+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if tt.wantStatus == 200 {
				if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
					t.Errorf("Content-Type = %q, want text/html", ct)
				}
			}
		})
	}
}

func TestHTTPPageReadFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.PagePath = filepath.Join(t.TempDir(), "gone.html")
	cfg.BroadcastInterval = time.Hour

	s := New(cfg, state.New(), &memSink{}, zerolog.Nop())
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Serve(ctx)

	resp, err := http.Get("http://" + s.Addr() + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500 when the page is unreadable", resp.StatusCode)
	}
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readSnapshot(t *testing.T, ws *websocket.Conn) state.Snapshot {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v\n%s", err, payload)
	}
	return snap
}

func TestNewConnectionGetsImmediateSnapshot(t *testing.T) {
	_, store, addr := startServer(t, nil)

	// Mid-session state before the client ever connects.
	store.SetTeamName("Dust Busters")
	store.UpdateScore(1240, 37.5, 152, false, []state.ScoreEntry{{Source: "cleaning", Points: 1240}})

	snap := readSnapshot(t, dialWS(t, addr))

	if snap.Points != 1240 || snap.Percent != 37.5 || snap.GameOver {
		t.Errorf("snapshot = %+v, want points=1240 percent=37.5 gameOver=false", snap)
	}
	if snap.TeamName != "Dust Busters" {
		t.Errorf("TeamName = %q", snap.TeamName)
	}
	if len(snap.ScoreLog) != 1 || snap.ScoreLog[0].Points != 1240 {
		t.Errorf("ScoreLog = %v", snap.ScoreLog)
	}
}

func waitForFlag(t *testing.T, store *state.Store, f state.Flag) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Consume(f) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("flag never raised")
}

func TestCommandsReachStore(t *testing.T) {
	_, store, addr := startServer(t, nil)
	ws := dialWS(t, addr)
	readSnapshot(t, ws)

	for _, action := range []string{"run", "relocate", "end"} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"`+action+`"}`)); err != nil {
			t.Fatal(err)
		}
	}

	waitForFlag(t, store, state.FlagRun)
	waitForFlag(t, store, state.FlagRelocate)
	waitForFlag(t, store, state.FlagEnd)
}

func TestUploadWritesFileAndBroadcasts(t *testing.T) {
	uploadPath := filepath.Join(t.TempDir(), "robot", "robot.py")
	_, store, addr := startServer(t, NewFileSink(uploadPath))

	ws := dialWS(t, addr)
	readSnapshot(t, ws)

	code := []byte("def run(robot):\n    robot.forward()\n")
	msg, err := json.Marshal(map[string]string{
		"action":   "upload",
		"content":  base64.StdEncoding.EncodeToString(code),
		"filename": "../nested/team_final.py",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}

	// The upload triggers an out-of-cycle broadcast; the periodic timer is
	// an hour out, so the next message can only be that.
	snap := readSnapshot(t, ws)
	if snap.LastUploadFilename == nil || *snap.LastUploadFilename != "team_final.py" {
		t.Errorf("LastUploadFilename = %v, want team_final.py", snap.LastUploadFilename)
	}
	if !snap.HasCode {
		t.Error("HasCode not set in broadcast")
	}

	written, err := os.ReadFile(uploadPath)
	if err != nil {
		t.Fatalf("uploaded file not written: %v", err)
	}
	if !bytes.Equal(written, code) {
		t.Error("uploaded bytes differ from sent code")
	}
	waitForFlag(t, store, state.FlagNewCode)
}

func TestMalformedFrameClosesOnlyThatConnection(t *testing.T) {
	_, store, addr := startServer(t, nil)

	healthy := dialWS(t, addr)
	readSnapshot(t, healthy)

	// Handshake by hand, then send garbage instead of a frame.
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	_, _ = raw.Write([]byte("GET /ws HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n"))
	buf := make([]byte, 1024)
	_ = raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := raw.Read(buf); err != nil {
		t.Fatalf("no handshake response: %v", err)
	}
	// Declares a 2 MiB text frame, over the 1 MiB cap.
	_, _ = raw.Write([]byte{0x81, 0xFF, 0, 0, 0, 0, 0, 0x20, 0, 0})

	_ = raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := raw.Read(buf); err != io.EOF {
		t.Errorf("oversized frame should close the connection, read err = %v", err)
	}

	// The healthy client still works end to end.
	if err := healthy.WriteMessage(websocket.TextMessage, []byte(`{"action":"run"}`)); err != nil {
		t.Fatal(err)
	}
	waitForFlag(t, store, state.FlagRun)
}

func TestOversizedHeadersDropConnection(t *testing.T) {
	_, _, addr := startServer(t, nil)

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	// 65 KiB of request with no header terminator.
	junk := bytes.Repeat([]byte("X-Filler: aaaaaaaaaaaaaaaa\r\n"), 65*1024/28+1)
	if _, err := raw.Write(append([]byte("GET / HTTP/1.1\r\n"), junk...)); err != nil {
		// The server may already have hung up mid-write; that is the point.
		return
	}

	_ = raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := raw.Read(buf)
	if n != 0 || err == nil {
		t.Errorf("expected silent close, got %d bytes, err=%v", n, err)
	}
}

func TestUpgradeRequiresKey(t *testing.T) {
	_, _, addr := startServer(t, nil)

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	// Upgrade header but no Sec-WebSocket-Key: falls through to HTTP, and
	// /ws is not a page, so 404.
	_, _ = raw.Write([]byte("GET /ws HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\n\r\n"))
	_ = raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := io.ReadAll(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(resp, []byte("HTTP/1.1 404")) {
		t.Errorf("response = %q, want 404", resp)
	}
}
