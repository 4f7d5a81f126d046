// Package discovery registers nodes in etcd and watches the cluster prefix
// so the liveness monitor learns about peers joining and leaving.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const nodePrefix = "/phiwatch/nodes/"

// NewClient dials etcd with the standard timeout.
func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// RegisterNode announces this node under the cluster prefix, bound to a TTL
// lease kept alive in the background. The returned cancel stops the
// keepalive; the lease then expires and peers observe the departure.
func RegisterNode(ctx context.Context, cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	key := nodePrefix + id
	if _, err := cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("register %s: %w", key, err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	acks, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		// Drain acks until the keepalive is cancelled, otherwise the
		// client stops renewing the lease.
		for range acks {
		}
	}()

	return lease.ID, cancel, nil
}

// GetPeers returns the currently registered nodes as id -> addr.
func GetPeers(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, nodePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	peers := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := strings.TrimPrefix(string(kv.Key), nodePrefix)
		peers[id] = string(kv.Value)
	}
	return peers, nil
}

// PeerEvent is one membership change observed under the cluster prefix.
type PeerEvent struct {
	ID   string
	Addr string
	Left bool
}

// WatchPeers streams membership changes to onEvent until ctx is done. PUTs
// are joins or address updates; DELETEs (lease expiry or revocation) are
// departures.
func WatchPeers(ctx context.Context, cli *clientv3.Client, log *zap.Logger, onEvent func(PeerEvent)) {
	wch := cli.Watch(ctx, nodePrefix, clientv3.WithPrefix())
	go func() {
		for resp := range wch {
			if err := resp.Err(); err != nil {
				log.Warn("peer watch error", zap.Error(err))
				continue
			}
			for _, ev := range resp.Events {
				id := strings.TrimPrefix(string(ev.Kv.Key), nodePrefix)
				switch ev.Type {
				case mvccpb.PUT:
					onEvent(PeerEvent{ID: id, Addr: string(ev.Kv.Value)})
				case mvccpb.DELETE:
					onEvent(PeerEvent{ID: id, Left: true})
				}
			}
		}
	}()
}
