package devserver

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/store/sqlite"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlite.New(":memory:")
	if err != nil {
		b.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := SeedGeneral(ctx, st); err != nil {
		b.Fatalf("seed: %v", err)
	}

	hub := NewHub(st)
	go hub.Run(ctx)

	join, _ := json.Marshal(proto.JoinRoomData{RoomID: generalRoom})
	sender := NewClient("sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Event: proto.EventJoinRoom, Data: join}
	go func() {
		for range sender.Events {
		}
	}()

	// Drain events for everyone but the target to avoid channel backpressure.
	for i := range recipients - 1 {
		c := NewClient("c" + strconv.Itoa(i))
		hub.RegisterClient(c)
		c.Commands <- &Command{Event: proto.EventJoinRoom, Data: join}
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	// The target joins last, so its first presence count covers the whole room.
	target := NewClient("target")
	hub.RegisterClient(target)
	target.Commands <- &Command{Event: proto.EventJoinRoom, Data: join}
	for f := range target.Events {
		if f.Event == proto.EventPresenceCount && proto.DecodePresence(f.Data).Count == recipients+1 {
			break
		}
	}

	payload, _ := json.Marshal(proto.MessageData{RoomID: generalRoom, Body: "payload"})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Event: proto.EventSendMessage, Data: payload}
		for f := range target.Events {
			if f.Event == proto.EventMessageAppended {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
