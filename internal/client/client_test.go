package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/engine"
	"github.com/lox/holdemtable/internal/events"
	"github.com/lox/holdemtable/internal/server"
)

// startTestServer boots a full table service behind an ephemeral HTTP
// listener, with a stacked deck so hands are deterministic
func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)

	cfg := &server.Config{
		Server: server.ServerSettings{Address: "localhost", Port: 8080, LogLevel: "info"},
		Tables: []server.TableConfig{{
			Name:       "main",
			MaxPlayers: 6,
			SmallBlind: 1,
			BigBlind:   2,
			BuyInMin:   40,
			BuyInMax:   500,
			// No action clock: the test drives every action itself
			ActionSeconds: 0,
			AutoStart:     true,
		}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	deck := func() (*cards.Deck, error) {
		cs, err := cards.ParseAll(
			"2h", "Ah", "7d", "As",
			"3c", "Kd", "8s", "4c",
			"5h", "9d",
			"6c", "Jc")
		if err != nil {
			return nil, err
		}
		return cards.NewStackedDeck(cs...), nil
	}

	service := server.NewTableService(logger, quartz.NewReal(), cfg, events.NewMemoryLog(),
		server.NewHub(logger), engine.WithDeckFactory(deck))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = service.Run(ctx) }()

	srv := server.NewServer("unused", logger, service)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	// Give the table workers a moment to register
	time.Sleep(20 * time.Millisecond)
	return ts
}

func connect(t *testing.T, ts *httptest.Server, name string) *Client {
	t.Helper()
	c := New(ts.URL, log.New(io.Discard))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	id, err := c.Auth(ctx, name)
	if err != nil {
		t.Fatalf("Auth failed: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("Expected a 26-character player id, got %q", id)
	}
	return c
}

func collectSnapshots(c *Client) <-chan engine.Snapshot {
	out := make(chan engine.Snapshot, 64)
	c.On(server.MsgSnapshot, func(msg *server.Message) {
		var data server.SnapshotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		select {
		case out <- data.Snapshot:
		default:
		}
	})
	return out
}

func waitForSnapshot(t *testing.T, snaps <-chan engine.Snapshot, match func(engine.Snapshot) bool) engine.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

// A full session over the wire: two players join, a hand is dealt,
// each sees only their own cards, the action resolves, and the result
// lands in the table history
func TestClientPlaysHandEndToEnd(t *testing.T) {
	ts := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := connect(t, ts, "alice")
	bob := connect(t, ts, "bob")
	aliceSnaps := collectSnapshots(alice)

	seat1, seat2 := 1, 2
	joined, err := alice.Join(ctx, "main", &seat1, 100)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.Seat != 1 || joined.Chips != 100 {
		t.Errorf("Join reply wrong: %+v", joined)
	}

	// Bob's join brings the table to two players and deals a hand
	if _, err := bob.Join(ctx, "main", &seat2, 100); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// Heads-up the button posts the small blind and acts first; Alice
	// took seat 1 so the first hand's action is on her
	onAlice := waitForSnapshot(t, aliceSnaps, func(s engine.Snapshot) bool {
		return s.CurrentPlayerID == alice.PlayerID()
	})
	if onAlice.HandID == "" || onAlice.Phase != "preflop" {
		t.Errorf("Expected a live preflop hand, got %+v", onAlice)
	}
	if onAlice.Actions == nil || !onAlice.Actions.CanCall {
		t.Errorf("Player to act should see their actions: %+v", onAlice.Actions)
	}

	// Alice sees her own cards and only the back of Bob's
	for _, pv := range onAlice.Players {
		switch pv.ID {
		case alice.PlayerID():
			if len(pv.HoleCards) != 2 {
				t.Errorf("Alice should see her own cards: %+v", pv)
			}
		case bob.PlayerID():
			if len(pv.HoleCards) != 0 || !pv.HasCards {
				t.Errorf("Bob's cards must stay hidden: %+v", pv)
			}
		}
	}

	if err := alice.Act("main", "fold", 0); err != nil {
		t.Fatalf("Act failed: %v", err)
	}

	done := waitForSnapshot(t, aliceSnaps, func(s engine.Snapshot) bool {
		return s.Phase == "complete"
	})
	for _, pv := range done.Players {
		if pv.ID == bob.PlayerID() && pv.Chips != 101 {
			t.Errorf("Bob should have won the blinds: %+v", pv)
		}
	}

	history, err := alice.History(ctx, "main", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history.Hands) == 0 {
		t.Fatal("Expected the completed hand in history")
	}
	latest := history.Hands[0]
	if latest.TotalPot != 3 || latest.WentToShowdown {
		t.Errorf("Expected a 3-chip walkover: %+v", latest)
	}
	if len(latest.Winners) != 1 || latest.Winners[0] != bob.PlayerID() {
		t.Errorf("Expected Bob to win, got %v", latest.Winners)
	}
}

func TestClientJoinRejectsBadBuyIn(t *testing.T) {
	ts := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := connect(t, ts, "carol")
	if _, err := c.Join(ctx, "main", nil, 5); err == nil {
		t.Fatal("Expected the buy-in below the minimum to be rejected")
	}
}

func TestClientUnknownTable(t *testing.T) {
	ts := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := connect(t, ts, "dave")
	if _, err := c.Join(ctx, "nope", nil, 100); err == nil {
		t.Fatal("Expected joining an unknown table to fail")
	}
}
