// Package main provides a CI-friendly WebSocket smoke test for the Twidder
// realtime channel.
//
// It validates:
//   - handshake with a browser-like Origin header
//   - signUp + signIn over the channel
//   - postMessage -> durable ack
//   - push fanout to every connection bound to the recipient
//   - no push back to the posting connection
//   - getUserMessagesByToken history fetch
//   - signOut terminality ("You are not signed in." on reuse)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 16 // matches the server frame limit

type envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type reply struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Event   string          `json:"event,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Data    struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	} `json:"data"`
}

type pushEntry struct {
	Writer  string `json:"writer"`
	Content string `json:"content"`
}

type pushData struct {
	Recipient string      `json:"recipient"`
	Messages  []pushEntry `json:"messages"`
}

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan []byte
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello twidder 👋", "Wall message to post")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	connA := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(connA.conn)

	connB1 := mustConnect(root, "B1", *wsURL, *origin, *timeout)
	defer closeWS(connB1.conn)

	connB2 := mustConnect(root, "B2", *wsURL, *origin, *timeout)
	defer closeWS(connB2.conn)

	suffix := time.Now().UnixNano()
	emailA := fmt.Sprintf("smoke-a-%d@example.com", suffix)
	emailB := fmt.Sprintf("smoke-b-%d@example.com", suffix)
	password := fmt.Sprintf("smoke-pass-%d", suffix)

	mustSignUp(root, connA, emailA, password, *timeout)
	mustSignUp(root, connB1, emailB, password, *timeout)

	tokenA := mustSignIn(root, connA, emailA, password, *timeout)
	_ = mustSignIn(root, connB1, emailB, password, *timeout)
	tokenB2 := mustSignIn(root, connB2, emailB, password, *timeout)

	if *verbose {
		fmt.Printf("connected and signed in: A=%s B=%s origin=%q\n", emailA, emailB, *origin)
	}

	mustPost(root, connA, tokenA, emailB, *text, *timeout)

	mustReceivePush(root, connB1, emailB, emailA, *text, *timeout)
	mustReceivePush(root, connB2, emailB, emailA, *text, *timeout)
	mustAssertNoPush(root, connA, 1200*time.Millisecond)

	mustHistoryContains(root, connB1, tokenB2, emailA, *text, *timeout)

	mustSignOut(root, connB2, tokenB2, *timeout)
	if res := mustOperation(root, connB2, "signOut", map[string]string{"token": tokenB2}, *timeout); res.Data.Success {
		fatalf("second signOut unexpectedly succeeded (B2)")
	} else if res.Data.Message != "You are not signed in." {
		fatalf("second signOut message mismatch (B2): got=%q", res.Data.Message)
	}

	fmt.Printf("OK: A=%s B=%s text=%q\n", emailA, emailB, *text)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan []byte, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}
			if mt != websocket.MessageText {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}
			select {
			case c.inbox <- data:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

// mustOperation writes one request envelope and reads until the matching
// operation reply arrives, skipping any push frames interleaved by the server.
func mustOperation(parent context.Context, c *smokeClient, event string, data any, stepTimeout time.Duration) reply {
	id := fmt.Sprintf("%s-%s-%d", c.name, event, time.Now().UnixNano())
	env := envelope{Event: event, ID: id, Data: mustJSON(data)}

	writeCtx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, mustJSON(env)); err != nil {
		fatalf("write %s (%s): %v", event, c.name, err)
	}

	readCtx, cancelRead := context.WithTimeout(parent, stepTimeout)
	defer cancelRead()

	for {
		select {
		case <-readCtx.Done():
			fatalf("timeout waiting for %q reply (%s): %v", event, c.name, readCtx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", event, c.name, err)
		case frame, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", event, c.name)
			}
			var r reply
			if err := json.Unmarshal(frame, &r); err != nil {
				fatalf("bad reply json (%s): %v", c.name, err)
			}
			if r.Event == "message" && r.ID == nil {
				continue // server push, not our reply
			}
			if !r.Success {
				fatalf("protocol error for %q (%s): %q", event, c.name, r.Message)
			}
			if r.Event != event {
				fatalf("reply event mismatch (%s): got=%q want=%q", c.name, r.Event, event)
			}
			var gotID string
			if err := json.Unmarshal(r.ID, &gotID); err != nil || gotID != id {
				fatalf("reply id mismatch (%s): got=%s want=%q", c.name, r.ID, id)
			}
			return r
		}
	}
}

func mustSignUp(parent context.Context, c *smokeClient, email, password string, stepTimeout time.Duration) {
	res := mustOperation(parent, c, "signUp", map[string]string{
		"email":      email,
		"password":   password,
		"firstname":  "Smoke",
		"familyname": c.name,
		"gender":     "other",
		"city":       "Linköping",
		"country":    "Sweden",
	}, stepTimeout)
	if !res.Data.Success {
		fatalf("signUp failed (%s): %q", c.name, res.Data.Message)
	}
}

func mustSignIn(parent context.Context, c *smokeClient, email, password string, stepTimeout time.Duration) string {
	res := mustOperation(parent, c, "signIn", map[string]string{
		"email":    email,
		"password": password,
	}, stepTimeout)
	if !res.Data.Success {
		fatalf("signIn failed (%s): %q", c.name, res.Data.Message)
	}
	var token string
	if err := json.Unmarshal(res.Data.Data, &token); err != nil {
		fatalf("unmarshal signIn data (%s): %v", c.name, err)
	}
	if strings.TrimSpace(token) == "" {
		fatalf("signIn returned empty token (%s)", c.name)
	}
	return token
}

func mustPost(parent context.Context, c *smokeClient, token, recipient, text string, stepTimeout time.Duration) {
	res := mustOperation(parent, c, "postMessage", map[string]string{
		"token":   token,
		"message": text,
		"email":   recipient,
	}, stepTimeout)
	if !res.Data.Success {
		fatalf("postMessage failed (%s): %q", c.name, res.Data.Message)
	}
}

func mustSignOut(parent context.Context, c *smokeClient, token string, stepTimeout time.Duration) {
	res := mustOperation(parent, c, "signOut", map[string]string{"token": token}, stepTimeout)
	if !res.Data.Success {
		fatalf("signOut failed (%s): %q", c.name, res.Data.Message)
	}
}

func mustReceivePush(parent context.Context, c *smokeClient, recipient, writer, text string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for push (%s): %v", c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for push (%s): %v", c.name, err)
		case frame, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for push (%s)", c.name)
			}
			var env struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(frame, &env); err != nil {
				fatalf("bad push json (%s): %v", c.name, err)
			}
			if env.Event != "message" {
				continue
			}
			var p pushData
			if err := json.Unmarshal(env.Data, &p); err != nil {
				fatalf("unmarshal push data (%s): %v", c.name, err)
			}
			if p.Recipient != recipient {
				fatalf("push recipient mismatch (%s): got=%q want=%q", c.name, p.Recipient, recipient)
			}
			if len(p.Messages) != 1 || p.Messages[0].Writer != writer || p.Messages[0].Content != text {
				fatalf("push payload mismatch (%s): %+v", c.name, p.Messages)
			}
			return
		}
	}
}

func mustAssertNoPush(parent context.Context, c *smokeClient, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case frame, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			var env struct {
				Event string `json:"event"`
				ID    any    `json:"id"`
			}
			if err := json.Unmarshal(frame, &env); err != nil {
				fatalf("bad frame json (%s): %v", c.name, err)
			}
			if env.Event == "message" && env.ID == nil {
				fatalf("unexpected push received by posting connection (%s)", c.name)
			}
		}
	}
}

func mustHistoryContains(parent context.Context, c *smokeClient, token, writer, text string, stepTimeout time.Duration) {
	res := mustOperation(parent, c, "getUserMessagesByToken", map[string]string{"token": token}, stepTimeout)
	if !res.Data.Success {
		fatalf("getUserMessagesByToken failed (%s): %q", c.name, res.Data.Message)
	}
	var entries []pushEntry
	if err := json.Unmarshal(res.Data.Data, &entries); err != nil {
		fatalf("unmarshal history (%s): %v", c.name, err)
	}
	for _, e := range entries {
		if e.Writer == writer && e.Content == text {
			return
		}
	}
	fatalf("history missing expected message (%s)", c.name)
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "smoke done")
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	return b
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
