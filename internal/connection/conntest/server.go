// Package conntest provides a scripted chat server for tests.
package conntest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Timeout bounds every wait on the fake server.
const Timeout = 2 * time.Second

// Server accepts websocket connections and hands each one out as a Peer.
type Server struct {
	srv   *httptest.Server
	peers chan *Peer

	mu  sync.Mutex
	all []*Peer
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{peers: make(chan *Peer, 16)}
	upgrader := websocket.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p := &Peer{
			ws:     ws,
			lines:  make(chan string, 256),
			closed: make(chan struct{}),
		}
		s.mu.Lock()
		s.all = append(s.all, p)
		s.mu.Unlock()

		s.peers <- p
		p.readLoop()
	}))
	t.Cleanup(s.Close)
	return s
}

// URL is the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Accept returns the next client connection.
func (s *Server) Accept(t testing.TB) *Peer {
	t.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(Timeout):
		t.Fatal("conntest: no client connected")
		return nil
	}
}

// AssertNoConnection fails if a client connects within d.
func (s *Server) AssertNoConnection(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case <-s.peers:
		t.Fatal("conntest: unexpected client connection")
	case <-time.After(d):
	}
}

func (s *Server) Close() {
	s.mu.Lock()
	peers := s.all
	s.all = nil
	s.mu.Unlock()
	for _, p := range peers {
		p.Drop()
	}
	s.srv.Close()
}

// Peer is the server side of one client connection.
type Peer struct {
	ws     *websocket.Conn
	lines  chan string
	closed chan struct{}

	writeMu  sync.Mutex
	dropOnce sync.Once
}

func (p *Peer) readLoop() {
	defer close(p.closed)
	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			return
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			if line != "" {
				p.lines <- line
			}
		}
	}
}

// Send writes lines as a single frame.
func (p *Peer) Send(t testing.TB, lines ...string) {
	t.Helper()
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	frame := strings.Join(lines, "\r\n") + "\r\n"
	if err := p.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("conntest: send: %v", err)
	}
}

// Expect returns the next line the client sent.
func (p *Peer) Expect(t testing.TB) string {
	t.Helper()
	select {
	case line := <-p.lines:
		return line
	case <-time.After(Timeout):
		t.Fatal("conntest: client sent nothing")
		return ""
	}
}

// ExpectPrefix skips client lines until one starts with prefix.
func (p *Peer) ExpectPrefix(t testing.TB, prefix string) string {
	t.Helper()
	deadline := time.After(Timeout)
	for {
		select {
		case line := <-p.lines:
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-deadline:
			t.Fatalf("conntest: client never sent %q", prefix)
			return ""
		}
	}
}

// AssertSilent fails if the client sends a line within d.
func (p *Peer) AssertSilent(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case line := <-p.lines:
		t.Fatalf("conntest: unexpected line %q", line)
	case <-time.After(d):
	}
}

// Login consumes the CAP/PASS/NICK handshake and returns the NICK login.
func (p *Peer) Login(t testing.TB) string {
	t.Helper()
	p.ExpectPrefix(t, "CAP REQ")
	nick := p.ExpectPrefix(t, "NICK ")
	return strings.TrimPrefix(nick, "NICK ")
}

// Welcome sends the welcome numerics and GLOBALUSERSTATE for login.
func (p *Peer) Welcome(t testing.TB, login string) {
	t.Helper()
	p.Send(t,
		":tmi.twitch.tv CAP * ACK :twitch.tv/membership twitch.tv/tags twitch.tv/commands",
		":tmi.twitch.tv 001 "+login+" :Welcome, GLHF!",
		":tmi.twitch.tv 002 "+login+" :Your host is tmi.twitch.tv",
		":tmi.twitch.tv 003 "+login+" :This server is rather new",
		":tmi.twitch.tv 004 "+login+" :-",
		":tmi.twitch.tv 375 "+login+" :-",
		":tmi.twitch.tv 372 "+login+" :You are in a maze of twisty passages, all alike.",
		":tmi.twitch.tv 376 "+login+" :>",
		"@badge-info=;badges=;color=#0000FF;display-name="+login+";emote-sets=0;user-id=1;user-type= :tmi.twitch.tv GLOBALUSERSTATE",
	)
}

// Handshake runs Login followed by Welcome.
func (p *Peer) Handshake(t testing.TB) string {
	t.Helper()
	login := p.Login(t)
	p.Welcome(t, login)
	return login
}

// Close sends a close frame with code and closes the socket.
func (p *Peer) Close(code int) {
	p.writeMu.Lock()
	_ = p.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	p.writeMu.Unlock()
	p.Drop()
}

// Drop closes the TCP connection without a close frame.
func (p *Peer) Drop() {
	p.dropOnce.Do(func() { _ = p.ws.Close() })
}

// Closed is closed once the client side went away.
func (p *Peer) Closed() <-chan struct{} {
	return p.closed
}
