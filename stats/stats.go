// Package stats implements the Collector: thread-safe connection
// registry and per-protocol traffic counters shared by every listener
// (spec §4.7). It is the only mutable state shared across goroutines
// besides each listener's own running flag.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"proxygateway/common"
)

// ConnectionRecord is a single live or recently-torn-down connection.
// Only the owning connection goroutine mutates BytesUp/BytesDown; the
// registry insert/remove is guarded by Collector's lock.
type ConnectionRecord struct {
	ID        string
	Protocol  common.ProtocolTag
	Client    common.Endpoint
	Target    common.Endpoint
	StartedAt time.Time
	BytesUp   int64
	BytesDown int64
}

// ProtocolCounters aggregates traffic and connection counts for one
// protocol tag.
type ProtocolCounters struct {
	Upload                int64
	Download              int64
	LiveConnections       int64
	CumulativeConnections int64
}

// HourlyBucket is one entry in the 24-hour ring, appended whenever the
// current hour index advances past the last recorded one.
type HourlyBucket struct {
	HourIndex             int64
	CumulativeUpload      int64
	CumulativeDownload    int64
	CumulativeConnections int64
	Protocols             map[common.ProtocolTag]ProtocolCounters
}

// Snapshot is the atomic read returned by Collector.Snapshot.
type Snapshot struct {
	Uptime            time.Duration
	StartTime         time.Time
	TotalUpload       int64
	TotalDownload     int64
	TotalConnections  int64
	ActiveConnections int
	Protocols         map[common.ProtocolTag]ProtocolCounters
}

// ConnectionView is the enumerable, string-rendered form of a
// ConnectionRecord returned by ListConnections.
type ConnectionView struct {
	ID        string
	Protocol  common.ProtocolTag
	Client    string
	Target    string
	DurationS int64
	BytesUp   int64
	BytesDown int64
}

// Collector is safe for concurrent use. Every exported method takes
// the lock for its whole critical section; none of them perform I/O
// while holding it, except ExportToFile/LoadFromFile which only hold
// it across the in-memory copy, not the file write.
type Collector struct {
	mu sync.RWMutex

	startTime        time.Time
	connections      map[string]*ConnectionRecord
	protocols        map[common.ProtocolTag]*ProtocolCounters
	totalUpload      int64
	totalDownload    int64
	totalConnections int64
	hourly           []HourlyBucket
	lastHour         int64
}

// New returns an empty Collector with start_time set to now.
func New() *Collector {
	return &Collector{
		startTime:   time.Now(),
		connections: make(map[string]*ConnectionRecord),
		protocols:   make(map[common.ProtocolTag]*ProtocolCounters),
		lastHour:    time.Now().Unix() / 3600,
	}
}

func connectionID(tag common.ProtocolTag, client common.Endpoint) string {
	return fmt.Sprintf("%s:%s:%d", tag, client.Host, client.Port)
}

func (c *Collector) protocolLocked(tag common.ProtocolTag) *ProtocolCounters {
	p, ok := c.protocols[tag]
	if !ok {
		p = &ProtocolCounters{}
		c.protocols[tag] = p
	}
	return p
}

// AddConnection registers a new ConnectionRecord and returns its
// registry id, which the caller passes to AddTraffic for the same
// connection. RemoveConnection derives the same id from tag and client.
func (c *Collector) AddConnection(tag common.ProtocolTag, client, target common.Endpoint) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := connectionID(tag, client)
	c.connections[id] = &ConnectionRecord{
		ID:        id,
		Protocol:  tag,
		Client:    client,
		Target:    target,
		StartedAt: time.Now(),
	}

	p := c.protocolLocked(tag)
	p.LiveConnections++
	p.CumulativeConnections++
	c.totalConnections++

	return id
}

// RemoveConnection deletes the registry entry and decrements the
// protocol's live count. A missing id is a no-op, so teardown paths
// can call it unconditionally.
func (c *Collector) RemoveConnection(tag common.ProtocolTag, client common.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := connectionID(tag, client)
	if _, ok := c.connections[id]; !ok {
		return
	}
	delete(c.connections, id)

	if p, ok := c.protocols[tag]; ok && p.LiveConnections > 0 {
		p.LiveConnections--
	}
}

// AddTraffic adds up/down bytes to both the per-protocol and the
// global totals, updates the named connection's own counters, and
// advances the hourly ring if the wall-clock hour has rolled over.
func (c *Collector) AddTraffic(tag common.ProtocolTag, id string, up, down int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.protocolLocked(tag)
	p.Upload += up
	p.Download += down
	c.totalUpload += up
	c.totalDownload += down

	if rec, ok := c.connections[id]; ok {
		rec.BytesUp += up
		rec.BytesDown += down
	}

	c.advanceHourLocked()
}

func (c *Collector) advanceHourLocked() {
	hour := time.Now().Unix() / 3600
	if hour <= c.lastHour {
		return
	}

	snapshot := make(map[common.ProtocolTag]ProtocolCounters, len(c.protocols))
	for tag, p := range c.protocols {
		snapshot[tag] = *p
	}

	c.hourly = append(c.hourly, HourlyBucket{
		HourIndex:             hour,
		CumulativeUpload:      c.totalUpload,
		CumulativeDownload:    c.totalDownload,
		CumulativeConnections: c.totalConnections,
		Protocols:             snapshot,
	})
	if len(c.hourly) > 24 {
		c.hourly = c.hourly[len(c.hourly)-24:]
	}
	c.lastHour = hour
}

// Snapshot returns an atomic, consistent read of uptime, totals, and
// per-protocol counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	protocols := make(map[common.ProtocolTag]ProtocolCounters, len(c.protocols))
	for tag, p := range c.protocols {
		protocols[tag] = *p
	}

	return Snapshot{
		Uptime:            time.Since(c.startTime),
		StartTime:         c.startTime,
		TotalUpload:       c.totalUpload,
		TotalDownload:     c.totalDownload,
		TotalConnections:  c.totalConnections,
		ActiveConnections: len(c.connections),
		Protocols:         protocols,
	}
}

// ListConnections returns the live-connection registry rendered for
// display.
func (c *Collector) ListConnections() []ConnectionView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	out := make([]ConnectionView, 0, len(c.connections))
	for _, rec := range c.connections {
		out = append(out, ConnectionView{
			ID:        rec.ID,
			Protocol:  rec.Protocol,
			Client:    rec.Client.String(),
			Target:    rec.Target.String(),
			DurationS: int64(now.Sub(rec.StartedAt).Seconds()),
			BytesUp:   rec.BytesUp,
			BytesDown: rec.BytesDown,
		})
	}
	return out
}

// Hourly returns a copy of the 24-entry ring.
func (c *Collector) Hourly() []HourlyBucket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]HourlyBucket, len(c.hourly))
	copy(out, c.hourly)
	return out
}

// Reset zeroes every counter and clears the connection registry and
// hourly ring. start_time is reset to now.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.connections = make(map[string]*ConnectionRecord)
	c.protocols = make(map[common.ProtocolTag]*ProtocolCounters)
	c.totalUpload = 0
	c.totalDownload = 0
	c.totalConnections = 0
	c.hourly = nil
	c.lastHour = time.Now().Unix() / 3600
}

// exportDoc is the on-disk schema for a stats export:
// the current snapshot plus the live connection list, the hourly
// ring, and the moment the file was written.
type exportDoc struct {
	Snapshot    Snapshot         `json:"current_stats"`
	Connections []ConnectionView `json:"active_connections"`
	Hourly      []HourlyBucket   `json:"hourly_stats"`
	ExportTime  time.Time        `json:"export_time"`
}

// ExportToFile writes the current snapshot, connection list, and
// hourly ring to path as indented JSON.
func (c *Collector) ExportToFile(path string) error {
	doc := exportDoc{
		Snapshot:    c.Snapshot(),
		Connections: c.ListConnections(),
		Hourly:      c.Hourly(),
		ExportTime:  time.Now(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("stats: write export: %w", err)
	}
	return nil
}

// LoadFromFile restores totals and per-protocol counters from a file
// previously written by ExportToFile. The live connection registry is
// not restored — connections cannot outlive a process restart.
func (c *Collector) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("stats: read export: %w", err)
	}

	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("stats: unmarshal export: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalUpload = doc.Snapshot.TotalUpload
	c.totalDownload = doc.Snapshot.TotalDownload
	c.totalConnections = doc.Snapshot.TotalConnections

	c.protocols = make(map[common.ProtocolTag]*ProtocolCounters, len(doc.Snapshot.Protocols))
	for tag, counters := range doc.Snapshot.Protocols {
		v := counters
		c.protocols[tag] = &v
	}

	c.hourly = doc.Hourly
	return nil
}
