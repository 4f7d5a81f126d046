package node

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Broadcast POSTs this node's heartbeat to every known peer on the
// configured interval until ctx is done. Delivery is best effort; a peer
// that cannot be reached simply accrues suspicion on its side.
func (n *Node) Broadcast(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.beat(ctx)
		}
	}
}

func (n *Node) beat(ctx context.Context) {
	for id, addr := range n.PeerAddrs() {
		url := "http://" + addr + "/heartbeat/" + n.id
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			continue
		}
		resp, err := n.client.Do(req)
		if err != nil {
			n.log.Debug("heartbeat send failed", zap.String("peer", id), zap.Error(err))
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
