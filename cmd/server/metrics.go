package main

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"territory.ai/internal/persistence/indexdb"
	"territory.ai/internal/persistence/r2s3"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
)

type kindStat struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// commandCounter tallies commands by kind for /metrics and admin state.
type commandCounter struct {
	mu     sync.Mutex
	byKind map[string]kindStat
}

func newCommandCounter() *commandCounter {
	return &commandCounter{byKind: map[string]kindStat{}}
}

func (c *commandCounter) RecordCommand(e game.CommandEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.byKind[e.Kind]
	if e.Code == "" {
		st.Accepted++
	} else {
		st.Rejected++
	}
	c.byKind[e.Kind] = st
	return nil
}

func (c *commandCounter) Snapshot() map[string]kindStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]kindStat, len(c.byKind))
	for k, v := range c.byKind {
		out[k] = v
	}
	return out
}

func metricsHandler(m *sessions.Manager, counts *commandCounter, idx indexdb.Index, mirror *r2s3.Mirror) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP tsim_sessions Live simulation sessions.\n")
		fmt.Fprintf(rw, "# TYPE tsim_sessions gauge\n")
		fmt.Fprintf(rw, "tsim_sessions %d\n", m.Len())

		snap := counts.Snapshot()
		kinds := make([]string, 0, len(snap))
		for k := range snap {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintf(rw, "# HELP tsim_commands_total Commands handled, by kind and outcome.\n")
		fmt.Fprintf(rw, "# TYPE tsim_commands_total counter\n")
		for _, k := range kinds {
			fmt.Fprintf(rw, "tsim_commands_total{kind=%q,outcome=%q} %d\n", k, "accepted", snap[k].Accepted)
			fmt.Fprintf(rw, "tsim_commands_total{kind=%q,outcome=%q} %d\n", k, "rejected", snap[k].Rejected)
		}

		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP tsim_r2_queue_depth Files waiting for upload.\n")
			fmt.Fprintf(rw, "# TYPE tsim_r2_queue_depth gauge\n")
			fmt.Fprintf(rw, "tsim_r2_queue_depth %d\n", ms.QueueDepth)

			fmt.Fprintf(rw, "# HELP tsim_r2_uploads_total Mirror uploads by outcome.\n")
			fmt.Fprintf(rw, "# TYPE tsim_r2_uploads_total counter\n")
			fmt.Fprintf(rw, "tsim_r2_uploads_total{outcome=%q} %d\n", "success", ms.UploadSuccessTotal)
			fmt.Fprintf(rw, "tsim_r2_uploads_total{outcome=%q} %d\n", "fail", ms.UploadFailTotal)
			fmt.Fprintf(rw, "tsim_r2_uploads_total{outcome=%q} %d\n", "dropped", ms.DroppedTotal)
		}

		if idx == nil {
			return
		}
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP tsim_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE tsim_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "tsim_index_queue_depth %d\n", st.QueueDepth)

		fmt.Fprintf(rw, "# HELP tsim_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE tsim_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "tsim_index_queue_capacity %d\n", st.QueueCapacity)

		fmt.Fprintf(rw, "# HELP tsim_index_dropped_total Index rows dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE tsim_index_dropped_total counter\n")
		fmt.Fprintf(rw, "tsim_index_dropped_total{kind=%q} %d\n", "command", st.DropCommandTotal)
		fmt.Fprintf(rw, "tsim_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)

		fmt.Fprintf(rw, "# HELP tsim_index_flush_fail_total Failed remote index flushes.\n")
		fmt.Fprintf(rw, "# TYPE tsim_index_flush_fail_total counter\n")
		fmt.Fprintf(rw, "tsim_index_flush_fail_total %d\n", st.FlushFailTotal)
	}
}
