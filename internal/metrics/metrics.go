// Package metrics periodically logs room and scheduler throughput so an
// operator tailing the process log can see activity without polling the
// admin API.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/gitter-badger/hifi/internal/scheduler"
	"github.com/gitter-badger/hifi/internal/transport"
)

// RoomStats is the subset of *transport.Hub this package logs.
type RoomStats interface {
	Stats() transport.Stats
}

// SchedulerStats is the subset of *scheduler.Scheduler this package logs.
type SchedulerStats interface {
	Stats() scheduler.StatsSnapshot
}

// Run logs combined room/scheduler throughput every interval until ctx is
// canceled.
func Run(ctx context.Context, logger *slog.Logger, room RoomStats, sched SchedulerStats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs := room.Stats()
			ss := sched.Stats()
			if rs.Peers == 0 && rs.TotalDatagrams == 0 {
				continue
			}
			logger.Info("mixer throughput",
				"peers", rs.Peers,
				"datagrams", rs.TotalDatagrams,
				"kb_per_sec", float64(rs.TotalBytes)/interval.Seconds()/1024,
				"bad_packets", rs.BadPackets,
				"unknown_source", rs.UnknownSource,
				"backpressure", rs.Backpressure,
				"mixes", ss.Mixes,
				"overruns", ss.Overruns,
				"sends_dropped", ss.SendsDropped,
			)
		}
	}
}
