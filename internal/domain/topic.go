package domain

// TopicInfo is a read-only view of one rendezvous topic (no transport fields).
type TopicInfo struct {
	Name        PeerID `json:"name"`
	Subscribers int    `json:"subscribers"`
	Buffered    int    `json:"buffered"`
}
