package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karajam/server/internal/controller"
	"github.com/karajam/server/internal/processor"
	"github.com/karajam/server/internal/repository/connection/inmemory"
	jamRedis "github.com/karajam/server/internal/repository/jam/redis"
	"github.com/karajam/server/internal/repository/queue"
	queueRedis "github.com/karajam/server/internal/repository/queue/redis"
	"github.com/karajam/server/internal/service/session"
)

type testEnv struct {
	service *session.Service
	rc      *redis.Client
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	logger := slog.Default()
	queueRepo := queueRedis.NewRepo(rc, logger)
	jamRepo := jamRedis.NewRepo(rc, time.Second, logger)
	connRepo := inmemory.NewRepo()
	proc := processor.New("", logger)

	svc := session.NewService(queueRepo, jamRepo, connRepo, proc, logger)

	return testEnv{service: svc, rc: rc}
}

func TestQueueScenario(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service
	ctx := context.Background()

	createRoomResp, err := svc.CreateRoom(ctx, &session.CreateRoomParams{RoomId: "room1"})
	require.NoError(t, err)
	assert.Equal(t, "room1", createRoomResp.RoomId)
	assert.True(t, createRoomResp.State.IsOn)

	// ops against unknown rooms fail
	_, err = svc.AddTrack(ctx, &session.AddTrackParams{
		RoomId: "nope",
		Track:  queue.Track{Id: "a"},
	})
	assert.ErrorIs(t, err, session.ErrRoomNotFound)

	var tracks []queue.Track
	for i, id := range []string{"a", "b", "c"} {
		addTrackResp, err := svc.AddTrack(ctx, &session.AddTrackParams{
			RoomId: "room1",
			Track:  queue.Track{Id: id, Name: "track " + id},
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, addTrackResp.Length)
		assert.Equal(t, queue.TrackStatusSubmitted, addTrackResp.Track.Status)
		tracks = append(tracks, addTrackResp.Track)
		time.Sleep(time.Millisecond)
	}

	// remove the middle entry by composite key
	removed, err := svc.RemoveTrack(ctx, &session.RemoveTrackParams{
		RoomId: "room1",
		Track:  tracks[1],
	})
	require.NoError(t, err)
	assert.True(t, removed.SameEntry(tracks[1]))

	_, err = svc.RemoveTrack(ctx, &session.RemoveTrackParams{
		RoomId: "room1",
		Track:  tracks[1],
	})
	assert.ErrorIs(t, err, session.ErrTrackNotFound)

	// insert after the playing track
	require.NoError(t, svc.SetCurrentIndex(ctx, "room1", 0))
	insertResp, err := svc.InsertNextTrack(ctx, &session.InsertNextTrackParams{
		RoomId: "room1",
		Track:  queue.Track{Id: "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, insertResp.Index)

	got, err := svc.GetQueue(ctx, "room1")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, track := range got {
		ids = append(ids, track.Id)
	}
	assert.Equal(t, []string{"a", "d", "c"}, ids)

	// reorder is conservative
	reordered, err := svc.ReorderQueue(ctx, &session.ReorderQueueParams{
		RoomId: "room1",
		From:   2,
		To:     0,
	})
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, "c", reordered[0].Id)

	_, err = svc.ReorderQueue(ctx, &session.ReorderQueueParams{
		RoomId: "room1",
		From:   0,
		To:     5,
	})
	assert.ErrorIs(t, err, session.ErrIndexOutOfRange)

	// clear keeps everything up to the cursor
	require.NoError(t, svc.ClearQueue(ctx, "room1"))
	got, err = svc.GetQueue(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Id)
}

func TestAddTrackWithCachedData(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, &session.CreateRoomParams{RoomId: "room1"})
	require.NoError(t, err)

	require.NoError(t, env.rc.Set(ctx, "track_data:cached", `{"id":"cached","name":"cached track"}`, 0).Err())

	addTrackResp, err := svc.AddTrack(ctx, &session.AddTrackParams{
		RoomId: "room1",
		Track:  queue.Track{Id: "cached", Name: "cached track"},
	})
	require.NoError(t, err)
	assert.Equal(t, queue.TrackStatusReady, addTrackResp.Track.Status, "a track with cached media skips the pipeline")

	got, err := svc.GetQueue(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, queue.TrackStatusReady, got[0].Status)
}

func newTestServer(t *testing.T) (testEnv, *httptest.Server) {
	t.Helper()

	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	env.service.Start(ctx)

	ctrl := controller.NewController(env.service, slog.Default())
	srv := httptest.NewServer(ctrl.GetMux())
	t.Cleanup(srv.Close)

	return env, srv
}

func wsDial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	return conn
}

func readWsMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	// decode numbers as json.Number so timestamps survive echoing a
	// track back to the server
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var msg map[string]any
	require.NoError(t, dec.Decode(&msg))

	return msg
}

// readWsUntilType drops frames until one of the wanted type arrives.
func readWsUntilType(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()

	for i := 0; i < 1000000; i++ {
		msg := readWsMsg(t, conn)
		if msg["type"] == msgType {
			return msg
		}
	}

	t.Fatalf("no %q message arrived", msgType)
	return nil
}

func wsData(t *testing.T, msg map[string]any) map[string]any {
	t.Helper()

	data, ok := msg["data"].(map[string]any)
	require.True(t, ok, "message has no data object: %v", msg)

	return data
}

func TestSessionProtocol(t *testing.T) {
	env, srv := newTestServer(t)

	// first participant connects and creates their own room by joining
	conn1 := wsDial(t, srv)
	msg := readWsMsg(t, conn1)
	assert.Equal(t, "init", msg["type"])

	require.NoError(t, conn1.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "alice",
		"data":   map[string]any{"id": "alice", "name": "Alice"},
	}))

	msg = readWsMsg(t, conn1)
	assert.Equal(t, "jam", msg["type"])
	assert.Equal(t, "joined", msg["action"])

	msg = readWsMsg(t, conn1)
	require.Equal(t, "room", msg["type"])
	jamState, ok := wsData(t, msg)["jam"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, jamState["isOn"], "wire keys are camelCase")

	// second participant joins the existing room
	conn2 := wsDial(t, srv)
	msg = readWsMsg(t, conn2)
	assert.Equal(t, "init", msg["type"])

	require.NoError(t, conn2.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "alice",
		"data":   map[string]any{"id": "bob", "name": "Bob"},
	}))

	msg = readWsMsg(t, conn2)
	assert.Equal(t, "joined", msg["action"])

	msg = readWsMsg(t, conn2)
	require.Equal(t, "room", msg["type"])
	participants, ok := wsData(t, msg)["participants"].([]any)
	require.True(t, ok)
	assert.Len(t, participants, 2)

	// the first participant sees the join too
	msg = readWsMsg(t, conn1)
	assert.Equal(t, "joined", msg["action"])
	joined, ok := wsData(t, msg)["participant"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bob", joined["id"])

	// a jam update is relayed verbatim to everyone but the sender
	require.NoError(t, conn1.WriteJSON(map[string]any{
		"type":   "jam",
		"roomId": "alice",
		"data":   map[string]any{"playing": true, "currentTime": 10.5},
	}))

	msg = readWsMsg(t, conn2)
	require.Equal(t, "jam", msg["type"])
	assert.Equal(t, true, wsData(t, msg)["playing"])

	// a queue add from the second participant reaches both
	require.NoError(t, conn2.WriteJSON(map[string]any{
		"type":   "queue",
		"roomId": "alice",
		"data": map[string]any{
			"action": "add",
			"track":  map[string]any{"id": "t1", "name": "Song"},
		},
	}))

	// conn1 never saw its own jam update: the next message is the add
	msg = readWsMsg(t, conn1)
	require.Equal(t, "queue", msg["type"])
	assert.Equal(t, "added", wsData(t, msg)["action"])

	msg = readWsMsg(t, conn2)
	require.Equal(t, "queue", msg["type"])
	assert.Equal(t, "added", wsData(t, msg)["action"])
	added, ok := wsData(t, msg)["track"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t1", added["id"])
	assert.NotZero(t, added["timeAdded"])

	// the merged jam state is visible over REST
	resp, err := http.Get(srv.URL + "/api/v1/rooms/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var roomResp map[string]any
	require.NoError(t, json.Unmarshal(body, &roomResp))
	data, ok := roomResp["data"].(map[string]any)
	require.True(t, ok)
	restJam, ok := data["jam"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, restJam["playing"])
	assert.Equal(t, 10.5, restJam["currentTime"])
	assert.Len(t, data["queue"], 1)
	assert.Len(t, data["participants"], 2)

	// pipeline progress published on the track's channel is broadcast
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, env.rc.Publish(context.Background(),
		"t1", `{"status":"separating","value":10,"total":100}`).Err())

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg = readWsMsg(t, conn)
		require.Equal(t, "notify", msg["type"])
		data := wsData(t, msg)
		assert.Equal(t, "progress", data["action"])
		assert.Equal(t, "separating", data["status"])
		track, ok := data["track"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "t1", track["id"])
	}
}

func TestQueueActionsOverSocket(t *testing.T) {
	_, srv := newTestServer(t)

	conn := wsDial(t, srv)
	readWsUntilType(t, conn, "init")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "carol",
		"data":   map[string]any{"id": "carol", "name": "Carol"},
	}))
	readWsUntilType(t, conn, "room")

	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"type":   "queue",
			"roomId": "carol",
			"data": map[string]any{
				"action": "add",
				"track":  map[string]any{"id": id, "name": id},
			},
		}))
		msg := readWsUntilType(t, conn, "queue")
		assert.Equal(t, "added", wsData(t, msg)["action"])
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "queue",
		"roomId": "carol",
		"data":   map[string]any{"action": "reorder", "from": 1, "to": 0},
	}))
	msg := readWsUntilType(t, conn, "queue")
	data := wsData(t, msg)
	require.Equal(t, "reordered", data["action"])
	tracks, ok := data["queue"].([]any)
	require.True(t, ok)
	require.Len(t, tracks, 2)
	first, ok := tracks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t2", first["id"])

	// echo a queue entry back with a new status, keyed by (id, timeAdded)
	second, ok := tracks[1].(map[string]any)
	require.True(t, ok)
	second["status"] = "ready"
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "queue",
		"roomId": "carol",
		"data":   map[string]any{"action": "status", "track": second},
	}))
	msg = readWsUntilType(t, conn, "queue")
	data = wsData(t, msg)
	require.Equal(t, "updated", data["action"])
	updated, ok := data["track"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t1", updated["id"])
	assert.Equal(t, "ready", updated["status"])
}

func TestHandshakeDuringBroadcast(t *testing.T) {
	env, srv := newTestServer(t)

	ctx := context.Background()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				env.service.Broadcast(ctx, &session.Event{
					Type: "notify",
					Data: map[string]any{"action": "progress"},
				})
			}
		}
	}()

	// every handshake write shares its connection with the flood
	for i := 0; i < 10; i++ {
		roomId := fmt.Sprintf("room%d", i)
		conn := wsDial(t, srv)
		readWsUntilType(t, conn, "init")

		require.NoError(t, conn.WriteJSON(map[string]any{
			"type":   "join",
			"roomId": roomId,
			"data":   map[string]any{"id": roomId, "name": "Jam"},
		}))
		readWsUntilType(t, conn, "room")

		// keep draining so the flood never backs up into the hub
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}

	close(stop)
	<-done
}

func TestGetRoomStateUnknownRoom(t *testing.T) {
	env, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/rooms/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// probing must not synthesize a room
	_, err = env.service.GetRoomState(context.Background(), "ghost")
	assert.ErrorIs(t, err, session.ErrRoomNotFound)
}

func TestReaddedTrackNotifiesOnce(t *testing.T) {
	env, srv := newTestServer(t)
	svc := env.service
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, &session.CreateRoomParams{RoomId: "room1"})
	require.NoError(t, err)

	conn := wsDial(t, srv)
	readWsUntilType(t, conn, "init")
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "room1",
		"data":   map[string]any{"id": "room1", "name": "Jam"},
	}))
	readWsUntilType(t, conn, "room")

	// the same unready track added twice keeps a single listener
	for i := 0; i < 2; i++ {
		_, err := svc.AddTrack(ctx, &session.AddTrackParams{
			RoomId: "room1",
			Track:  queue.Track{Id: "t1", Name: "Song"},
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, env.rc.Publish(ctx,
		"t1", `{"status":"separating","value":10,"total":100}`).Err())

	msg := readWsUntilType(t, conn, "notify")
	assert.Equal(t, "progress", wsData(t, msg)["action"])

	// a second notify would only arrive from a duplicate subscription
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, srv := newTestServer(t)

	conn := wsDial(t, srv)
	msg := readWsMsg(t, conn)
	assert.Equal(t, "init", msg["type"])

	// joining someone else's room before it exists fails
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "ghost",
		"data":   map[string]any{"id": "bob", "name": "Bob"},
	}))

	msg = readWsMsg(t, conn)
	assert.Equal(t, "error", msg["type"])

	// the connection survives and a valid join still works
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "join",
		"roomId": "bob",
		"data":   map[string]any{"id": "bob", "name": "Bob"},
	}))

	msg = readWsMsg(t, conn)
	assert.Equal(t, "joined", msg["action"])
	msg = readWsMsg(t, conn)
	assert.Equal(t, "room", msg["type"])
}
