package websocket

import (
	"fmt"
	"sync"
	"testing"
)

// Run with: go test -bench . -run ^$ ./internal/microservices/websocket/

func BenchmarkHub_Publish(b *testing.B) {
	for _, subscribers := range []int{1, 20, 100} {
		b.Run(fmt.Sprintf("subscribers=%d", subscribers), func(b *testing.B) {
			hub := NewHub(DefaultSubscriberBuffer, discardLogger())
			var wg sync.WaitGroup
			for i := 0; i < subscribers; i++ {
				sub, err := hub.Subscribe()
				if err != nil {
					b.Fatal(err)
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range sub.Events() {
					}
				}()
			}

			ev := ChatMessage{ID: "bench", From: "12D3KooWLocal", FromName: "node-a", Content: "hello", Timestamp: 1700000000000}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				hub.Publish(ev)
			}
			b.StopTimer()
			hub.Close()
			wg.Wait()
		})
	}
}

func BenchmarkEncodeEvent(b *testing.B) {
	ev := PeersList{Peers: []PeerListEntry{
		{ID: "12D3KooWA", Name: strPtr("alice"), Reputation: 0.5, Addresses: []string{"/ip4/10.0.0.1/tcp/9000"}},
		{ID: "12D3KooWB", Reputation: 0.7, Addresses: []string{}},
	}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeEvent(ev); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseCommand(b *testing.B) {
	frame := []byte(`{"type":"transfer_credit","to":"12D3KooWBob","amount":12.5,"memo":"rent"}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseCommand(frame); err != nil {
			b.Fatal(err)
		}
	}
}
