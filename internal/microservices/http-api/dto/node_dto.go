package dto

import (
	"mycelhub/internal/microservices/http-api/service"
	"mycelhub/internal/microservices/websocket"
	"mycelhub/internal/peerstore"
)

// PeersResponse for GET /api/peers; entries match the websocket peers_list shape.
type PeersResponse struct {
	Peers []websocket.PeerListEntry `json:"peers"`
	Count int                       `json:"count"`
}

func PeersFromRecords(records []peerstore.Record) PeersResponse {
	list := websocket.NewPeersList(records)
	return PeersResponse{Peers: list.Peers, Count: len(list.Peers)}
}

// StatsResponse for GET /api/stats
type StatsResponse struct {
	PeerID        string `json:"peer_id"`
	NodeName      string `json:"node_name"`
	PeerCount     int    `json:"peer_count"`
	MessageCount  uint64 `json:"message_count"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
}

func StatsFromService(s *service.NodeStats) StatsResponse {
	return StatsResponse{
		PeerID:        s.PeerID,
		NodeName:      s.NodeName,
		PeerCount:     s.PeerCount,
		MessageCount:  s.MessageCount,
		UptimeSeconds: s.UptimeSeconds,
		Sessions:      s.Sessions,
	}
}
