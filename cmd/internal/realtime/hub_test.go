package realtime

import (
	"encoding/json"
	"testing"
)

type pushWire struct {
	Event string `json:"event"`
	Data  struct {
		Recipient string `json:"recipient"`
		Messages  []struct {
			Writer  string `json:"writer"`
			Content string `json:"content"`
		} `json:"messages"`
	} `json:"data"`
}

func recvFrame(t *testing.T, c *Client) pushWire {
	t.Helper()
	select {
	case frame := <-c.Send:
		var w pushWire
		if err := json.Unmarshal(frame, &w); err != nil {
			t.Fatalf("unmarshal push frame: %v", err)
		}
		return w
	default:
		t.Fatal("no frame queued")
	}
	return pushWire{}
}

func TestHubDeliversToEveryRecipientConnectionExceptOrigin(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger())
	hub := NewHub(testLogger(), reg)

	// The poster has one connection, the recipient two.
	origin := NewClient("conn-a", 4)
	b1 := NewClient("conn-b1", 4)
	b2 := NewClient("conn-b2", 4)
	reg.Bind(origin, "a@x.com")
	reg.Bind(b1, "b@x.com")
	reg.Bind(b2, "b@x.com")

	hub.PushMessage("b@x.com", "a@x.com", "hi", origin)

	for _, c := range []*Client{b1, b2} {
		w := recvFrame(t, c)
		if w.Event != "message" || w.Data.Recipient != "b@x.com" {
			t.Fatalf("frame on %s = %+v", c.ConnID(), w)
		}
		if len(w.Data.Messages) != 1 || w.Data.Messages[0].Writer != "a@x.com" || w.Data.Messages[0].Content != "hi" {
			t.Fatalf("messages on %s = %+v", c.ConnID(), w.Data.Messages)
		}
	}

	// The poster's own connection stays silent.
	select {
	case frame := <-origin.Send:
		t.Fatalf("origin received frame: %s", frame)
	default:
	}
}

func TestHubSelfPostReachesOtherOwnConnections(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger())
	hub := NewHub(testLogger(), reg)

	origin := NewClient("conn-a1", 4)
	other := NewClient("conn-a2", 4)
	reg.Bind(origin, "a@x.com")
	reg.Bind(other, "a@x.com")

	// Posting to your own wall notifies your other connections only.
	hub.PushMessage("a@x.com", "a@x.com", "note", origin)

	w := recvFrame(t, other)
	if w.Data.Messages[0].Content != "note" {
		t.Fatalf("frame = %+v", w)
	}
	select {
	case <-origin.Send:
		t.Fatal("origin connection was not excluded")
	default:
	}
}

func TestHubNilOriginExcludesNothing(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger())
	hub := NewHub(testLogger(), reg)

	b1 := NewClient("conn-b1", 4)
	reg.Bind(b1, "b@x.com")

	// REST posts carry no origin channel.
	hub.PushMessage("b@x.com", "a@x.com", "hi", nil)

	if w := recvFrame(t, b1); w.Data.Messages[0].Content != "hi" {
		t.Fatalf("frame = %+v", w)
	}
}

func TestHubSkipsNonRecipientsAndClosedClients(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger())
	hub := NewHub(testLogger(), reg)

	other := NewClient("conn-c", 4)
	closed := NewClient("conn-b-closed", 4)
	live := NewClient("conn-b-live", 4)
	reg.Bind(other, "c@x.com")
	reg.Bind(closed, "b@x.com")
	reg.Bind(live, "b@x.com")
	closed.Close()

	hub.PushMessage("b@x.com", "a@x.com", "hi", nil)

	// One closing connection does not affect delivery to the live one.
	if w := recvFrame(t, live); w.Data.Recipient != "b@x.com" {
		t.Fatalf("frame = %+v", w)
	}
	select {
	case <-other.Send:
		t.Fatal("non-recipient received a frame")
	case <-closed.Send:
		t.Fatal("closed client received a frame")
	default:
	}
}

func TestHubDropsUnderBackpressureWithoutBlocking(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger())
	hub := NewHub(testLogger(), reg)

	full := NewClient("conn-b", 1)
	reg.Bind(full, "b@x.com")

	// Fill the queue, then push again; the second push must return
	// immediately and leave the queued frame intact.
	hub.PushMessage("b@x.com", "a@x.com", "first", nil)
	hub.PushMessage("b@x.com", "a@x.com", "second", nil)

	if w := recvFrame(t, full); w.Data.Messages[0].Content != "first" {
		t.Fatalf("frame = %+v", w)
	}
	select {
	case frame := <-full.Send:
		t.Fatalf("unexpected second frame: %s", frame)
	default:
	}
}
