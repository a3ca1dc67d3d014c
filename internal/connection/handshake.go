package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
)

// Replies that may precede GLOBALUSERSTATE without ending validation.
var handshakeReplies = map[string]bool{
	"001": true, "002": true, "003": true, "004": true,
	"372": true, "375": true, "376": true,
}

// handshake requests capabilities and logs in on ws. For authenticated
// logins it reads until GLOBALUSERSTATE, a login NOTICE or a capability NAK.
// Lines read past the point where validation ended are returned for replay.
func (c *Conn) handshake(ctx context.Context, ws *websocket.Conn) (*irc.Message, []string, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = ws.SetReadDeadline(time.Now())
		_ = ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	login := []*irc.Message{irc.New("CAP", "REQ").WithTrailing(Capabilities)}
	if !c.Anonymous() {
		login = append(login, irc.New("PASS", oauthToken(c.cfg.Token)))
	}
	login = append(login, irc.New("NICK", c.cfg.Login))

	for _, msg := range login {
		if err := writeFrame(ws, msg); err != nil {
			return nil, nil, handshakeErr(ctx, err)
		}
	}

	if c.Anonymous() {
		return nil, nil, nil
	}

	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return nil, nil, handshakeErr(ctx, err)
		}

		lines := splitLines(string(data))
		for i, line := range lines {
			if isPing(line) {
				if err := writeFrame(ws, pong(line)); err != nil {
					return nil, nil, handshakeErr(ctx, err)
				}
				continue
			}

			msg := irc.Parse(line)
			switch {
			case msg.Command == "GLOBALUSERSTATE":
				return msg, lines[i+1:], nil
			case msg.Command == "NOTICE" && len(msg.Middles) > 0 && msg.Middles[0] == "*":
				return nil, nil, &domain.LoginError{Notice: msg.Trailing}
			case msg.Command == "CAP" && len(msg.Middles) > 1 && msg.Middles[1] == "NAK":
				return nil, nil, fmt.Errorf("%w: %s", domain.ErrCapabilitiesRejected, msg.Trailing)
			case msg.Command == "CAP" && len(msg.Middles) > 1 && msg.Middles[1] == "ACK":
			case handshakeReplies[msg.Command]:
			default:
				// The server is already past the login; treat it as accepted.
				return nil, lines[i:], nil
			}
		}
	}
}

func handshakeErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("handshake: %w", ctxErr)
	}
	return fmt.Errorf("handshake: %w", err)
}

func oauthToken(token string) string {
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}
