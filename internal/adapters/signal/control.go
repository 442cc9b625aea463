package signal

import "github.com/dkeye/Rendezvous/internal/domain"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(
	pair domain.Pair,
	conn *WsSignalConn,
) {
	resp := struct {
		Type   string        `json:"type"`
		UserID domain.PeerID `json:"userID"`
		PeerID domain.PeerID `json:"peerID"`
	}{
		Type:   "whoami",
		UserID: pair.Self,
		PeerID: pair.Remote,
	}
	ctl.sendJSON(conn, resp)
}
