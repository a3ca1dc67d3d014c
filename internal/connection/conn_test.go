package connection_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tmi/internal/connection"
	"github.com/pscheid92/tmi/internal/connection/conntest"
	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
)

func newConn(t *testing.T, srv *conntest.Server, login, token string, keepAlive bool) *connection.Conn {
	t.Helper()
	c := connection.New(connection.Config{
		URL:       srv.URL(),
		Login:     login,
		Token:     token,
		KeepAlive: keepAlive,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type connectResult struct {
	gus *irc.Message
	err error
}

func connectAsync(ctx context.Context, c *connection.Conn) <-chan connectResult {
	ch := make(chan connectResult, 1)
	go func() {
		gus, err := c.Connect(ctx)
		ch <- connectResult{gus, err}
	}()
	return ch
}

func TestConnect_AuthenticatedHandshake(t *testing.T) {
	srv := conntest.NewServer(t)
	c := newConn(t, srv, "RonniBot", "secret", false)
	ctx := testContext(t)

	done := connectAsync(ctx, c)
	peer := srv.Accept(t)

	assert.Equal(t, "CAP REQ :twitch.tv/membership twitch.tv/tags twitch.tv/commands", peer.Expect(t))
	assert.Equal(t, "PASS oauth:secret", peer.Expect(t))
	assert.Equal(t, "NICK ronnibot", peer.Expect(t))
	peer.Welcome(t, "ronnibot")

	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.gus)
	assert.Equal(t, "GLOBALUSERSTATE", res.gus.Command)
	assert.Equal(t, connection.Ready, c.State())
	assert.NotEmpty(t, c.Session())
}

func TestConnect_AnonymousSkipsPassAndValidation(t *testing.T) {
	srv := conntest.NewServer(t)
	c := newConn(t, srv, "justinfan123", "", false)

	gus, err := c.Connect(testContext(t))
	require.NoError(t, err)
	assert.Nil(t, gus)
	assert.True(t, c.Anonymous())

	peer := srv.Accept(t)
	assert.Equal(t, "CAP REQ :twitch.tv/membership twitch.tv/tags twitch.tv/commands", peer.Expect(t))
	assert.Equal(t, "NICK justinfan123", peer.Expect(t))
}

func TestConnect_LoginFailed(t *testing.T) {
	srv := conntest.NewServer(t)
	c := newConn(t, srv, "ronnibot", "wrong", true)
	ctx := testContext(t)

	done := connectAsync(ctx, c)
	peer := srv.Accept(t)
	peer.Login(t)
	peer.Send(t, ":tmi.twitch.tv NOTICE * :Login authentication failed")

	res := <-done
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrLoginFailed)

	var loginErr *domain.LoginError
	require.ErrorAs(t, res.err, &loginErr)
	assert.Equal(t, "Login authentication failed", loginErr.Notice)
	assert.NotEqual(t, connection.Ready, c.State())
}

func TestConnect_CapabilitiesRejected(t *testing.T) {
	srv := conntest.NewServer(t)
	c := newConn(t, srv, "ronnibot", "secret", false)
	ctx := testContext(t)

	done := connectAsync(ctx, c)
	peer := srv.Accept(t)
	peer.Login(t)
	peer.Send(t, ":tmi.twitch.tv CAP * NAK :twitch.tv/membership twitch.tv/tags twitch.tv/commands")

	res := <-done
	assert.ErrorIs(t, res.err, domain.ErrCapabilitiesRejected)
}

func TestConnect_UnexpectedReplyEndsValidationAndIsReplayed(t *testing.T) {
	srv := conntest.NewServer(t)
	c := newConn(t, srv, "ronnibot", "secret", false)
	ctx := testContext(t)

	done := connectAsync(ctx, c)
	peer := srv.Accept(t)
	peer.Login(t)
	peer.Send(t,
		":tmi.twitch.tv CAP * ACK :twitch.tv/membership",
		":tmi.twitch.tv 001 ronnibot :Welcome, GLHF!",
		"@room-id=1 :tmi.twitch.tv ROOMSTATE #ronni",
	)

	res := <-done
	require.NoError(t, res.err)
	assert.Nil(t, res.gus)

	msg, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ROOMSTATE", msg.Command)
	assert.Equal(t, "ronni", msg.Channel())
}

func connected(t *testing.T, srv *conntest.Server, keepAlive bool) (*connection.Conn, *conntest.Peer) {
	t.Helper()
	c := newConn(t, srv, "ronnibot", "secret", keepAlive)
	done := connectAsync(testContext(t), c)
	peer := srv.Accept(t)
	peer.Handshake(t)
	require.NoError(t, (<-done).err)
	return c, peer
}

func TestNext_SplitsFramesAndAnswersPing(t *testing.T) {
	srv := conntest.NewServer(t)
	c, peer := connected(t, srv, false)
	ctx := testContext(t)

	peer.Send(t, "PING :tmi.twitch.tv", ":foo!foo@foo.tmi.twitch.tv PRIVMSG #ronni :one", ":foo!foo@foo.tmi.twitch.tv PRIVMSG #ronni :two")

	first, err := c.Next(ctx)
	require.NoError(t, err)
	second, err := c.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, "one", first.Trailing)
	assert.Equal(t, "two", second.Trailing)
	assert.Equal(t, "PONG :tmi.twitch.tv", peer.ExpectPrefix(t, "PONG"))
}

func TestNext_CleanCloseEndsStream(t *testing.T) {
	srv := conntest.NewServer(t)
	c, peer := connected(t, srv, true)

	peer.Close(1000)

	_, err := c.Next(testContext(t))
	assert.ErrorIs(t, err, domain.ErrConnectionClosed)
	srv.AssertNoConnection(t, 200*time.Millisecond)
}

func TestNext_ErrorWithoutKeepAlivePropagates(t *testing.T) {
	srv := conntest.NewServer(t)
	c, peer := connected(t, srv, false)

	peer.Drop()

	_, err := c.Next(testContext(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConnectionClosed)
}

func TestNext_AbnormalCloseReconnects(t *testing.T) {
	srv := conntest.NewServer(t)
	c, peer := connected(t, srv, true)
	ctx := testContext(t)
	firstSession := c.Session()

	type nextResult struct {
		msg *irc.Message
		err error
	}
	results := make(chan nextResult, 1)
	go func() {
		msg, err := c.Next(ctx)
		results <- nextResult{msg, err}
	}()

	peer.Drop()

	next := srv.Accept(t)
	next.Handshake(t)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, "GLOBALUSERSTATE", res.msg.Command, "reconnect replays the fresh global state")

	select {
	case <-c.Reconnected():
	case <-time.After(conntest.Timeout):
		t.Fatal("no reconnect notification")
	}
	assert.NotEqual(t, firstSession, c.Session())

	next.Send(t, ":foo!foo@foo PRIVMSG #ronni :back")
	msg, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "back", msg.Trailing)
}

func TestSend_WritesLine(t *testing.T) {
	srv := conntest.NewServer(t)
	c, peer := connected(t, srv, false)

	require.NoError(t, c.Send(testContext(t), irc.New("JOIN", "#a,#b")))
	require.NoError(t, c.Send(testContext(t), irc.New("PRIVMSG", "#a").WithTrailing("hello there")))

	assert.Equal(t, "JOIN #a,#b", peer.Expect(t))
	assert.Equal(t, "PRIVMSG #a :hello there", peer.Expect(t))
}

func TestSend_AfterCloseFails(t *testing.T) {
	srv := conntest.NewServer(t)
	c, _ := connected(t, srv, true)

	require.NoError(t, c.Close())

	err := c.Send(testContext(t), irc.New("JOIN", "#a"))
	assert.ErrorIs(t, err, domain.ErrConnectionClosed)
	assert.Equal(t, connection.Stopped, c.State())
}

// recordingDialer hands every raw client connection to the test.
func recordingDialer() (*websocket.Dialer, <-chan net.Conn) {
	conns := make(chan net.Conn, 4)
	var nd net.Dialer
	d := *websocket.DefaultDialer
	d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := nd.DialContext(ctx, network, addr)
		if err == nil {
			conns <- conn
		}
		return conn, err
	}
	return &d, conns
}

func TestSend_ClosedSocketRestartsOnceAndResends(t *testing.T) {
	srv := conntest.NewServer(t)
	dialer, conns := recordingDialer()
	c := connection.New(connection.Config{
		URL:       srv.URL(),
		Login:     "ronnibot",
		Token:     "secret",
		KeepAlive: true,
		Dialer:    dialer,
	})
	t.Cleanup(func() { _ = c.Close() })
	ctx := testContext(t)

	done := connectAsync(ctx, c)
	peer := srv.Accept(t)
	peer.Handshake(t)
	require.NoError(t, (<-done).err)
	firstSession := c.Session()

	require.NoError(t, (<-conns).Close())
	peer.Drop()

	errs := make(chan error, 2)
	for _, text := range []string{"one", "two"} {
		go func() {
			errs <- c.Send(ctx, irc.New("PRIVMSG", "#ronni").WithTrailing(text))
		}()
	}

	next := srv.Accept(t)
	next.Handshake(t)

	for range 2 {
		require.NoError(t, <-errs)
	}
	got := []string{next.Expect(t), next.Expect(t)}
	assert.ElementsMatch(t, []string{"PRIVMSG #ronni :one", "PRIVMSG #ronni :two"}, got)
	next.AssertSilent(t, 200*time.Millisecond)
	srv.AssertNoConnection(t, 200*time.Millisecond)
	assert.NotEqual(t, firstSession, c.Session())
	assert.Equal(t, connection.Ready, c.State())
}

func TestRestart_OverlappingCallersShareOneReconnect(t *testing.T) {
	srv := conntest.NewServer(t)
	c, _ := connected(t, srv, true)
	ctx := testContext(t)

	start := make(chan struct{})
	errs := make(chan error, 5)
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- c.Restart(ctx)
		}()
	}
	close(start)

	peer := srv.Accept(t)
	peer.Login(t)
	time.Sleep(50 * time.Millisecond)
	peer.Welcome(t, "ronnibot")

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	srv.AssertNoConnection(t, 200*time.Millisecond)
	assert.Equal(t, connection.Ready, c.State())
}

func TestRestart_LoginFailureIsFatal(t *testing.T) {
	srv := conntest.NewServer(t)
	c, _ := connected(t, srv, true)
	ctx := testContext(t)

	done := make(chan error, 1)
	go func() { done <- c.Restart(ctx) }()

	peer := srv.Accept(t)
	peer.Login(t)
	peer.Send(t, ":tmi.twitch.tv NOTICE * :Login authentication failed")

	assert.ErrorIs(t, <-done, domain.ErrLoginFailed)
}
