package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/tuning"
)

// D1Config points the index at a remote ingest worker that batches rows into
// a hosted SQL database.
type D1Config struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCommand  atomic.Uint64
	dropSnapshot atomic.Uint64
	flushFail    atomic.Uint64
}

type d1Event struct {
	Kind     string `json:"kind"`
	ServerID string `json:"server_id"`
	Payload  any    `json:"payload"`
}

type d1SnapshotPayload struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	Path      string         `json:"path"`
	MapDigest string         `json:"map_digest"`
	Nodes     int            `json:"nodes"`
	Occupied  int            `json:"occupied"`
	Teams     int            `json:"teams"`
	Scores    map[string]int `json:"scores"`
}

type d1CatalogPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &D1Index{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan d1Event, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) RecordCommand(entry game.CommandEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	if !d.enqueue(d1Event{Kind: "command", ServerID: d.cfg.ServerID, Payload: entry}) {
		d.dropCommand.Add(1)
	}
	return nil
}

func (d *D1Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if d == nil || d.closed.Load() {
		return
	}
	row := summarize(path, snap)
	p := d1SnapshotPayload{
		SessionID: row.SessionID,
		Seq:       row.Seq,
		Path:      row.Path,
		MapDigest: row.MapDigest,
		Nodes:     row.Nodes,
		Occupied:  row.Occupied,
		Teams:     row.Teams,
		Scores:    row.Scores,
	}
	if !d.enqueue(d1Event{Kind: "snapshot", ServerID: d.cfg.ServerID, Payload: p}) {
		d.dropSnapshot.Add(1)
	}
}

func (d *D1Index) UpsertCatalog(cat *catalogs.MapCatalog, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range catalogRows(cat, tune) {
		if r.name == "" || r.digest == "" || len(r.data) == 0 {
			continue
		}
		d.enqueue(d1Event{Kind: "catalog", ServerID: d.cfg.ServerID, Payload: d1CatalogPayload{
			Name:      r.name,
			Digest:    r.digest,
			JSON:      string(r.data),
			UpdatedAt: now,
		}})
	}
	return nil
}

func (d *D1Index) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(d.ch),
		QueueCapacity:     cap(d.ch),
		DropCommandTotal:  d.dropCommand.Load(),
		DropSnapshotTotal: d.dropSnapshot.Load(),
		FlushFailTotal:    d.flushFail.Load(),
	}
}

func (d *D1Index) enqueue(ev d1Event) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	select {
	case d.ch <- ev:
		return true
	default:
		d.printf("d1 index queue full; drop kind=%s", ev.Kind)
		return false
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			if len(batch) < 4*d.cfg.BatchSize {
				// Keep the batch for the next tick.
				return
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-tsim-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
