package narration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"storyreel/internal/logging"
	"storyreel/internal/textutil"
)

// Audio is the raw result of one synthesis call.
type Audio struct {
	Data            []byte
	DurationSeconds float64
}

// Synthesizer converts markup into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, markup string) (Audio, error)
}

// Uploader stores synthesized audio and returns a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Request identifies one spoken part to synthesize.
type Request struct {
	SceneID    string
	SceneIndex int
	PartIndex  int
	VoiceID    string
	Markup     string
}

// Key returns the cache key of the request.
func (r Request) Key() string { return CacheKey(r.VoiceID, r.Markup) }

// Segment is a synthesized narration clip.
type Segment struct {
	SceneID         string  `json:"sceneId"`
	SceneIndex      int     `json:"sceneIndex"`
	PartIndex       int     `json:"partIndex"`
	Markup          string  `json:"markup"`
	Audio           []byte  `json:"-"`
	DurationSeconds float64 `json:"durationSeconds"`
	CacheKey        string  `json:"cacheKey"`
	URL             string  `json:"url,omitempty"`
}

type flight struct {
	waiters int
	epoch   uint64
	// tokens records each requesting scene's generation when it joined.
	tokens map[string]uint64
}

// Cache holds completed segments and de-duplicates in-flight synthesis.
// It lives for one editing session and is never persisted.
type Cache struct {
	synth    Synthesizer
	uploader Uploader
	logger   *slog.Logger
	group    singleflight.Group

	mu          sync.Mutex
	entries     map[string]*Segment
	owners      map[string]map[string]struct{}
	inflight    map[string]*flight
	generations map[string]uint64
	epoch       uint64
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithUploader stores each synthesized clip through the uploader before it is
// considered complete.
func WithUploader(u Uploader) CacheOption {
	return func(c *Cache) { c.uploader = u }
}

// WithCacheLogger sets the logger used for cache diagnostics.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache constructs an empty cache backed by synth.
func NewCache(synth Synthesizer, opts ...CacheOption) *Cache {
	c := &Cache{
		synth:       synth,
		entries:     make(map[string]*Segment),
		owners:      make(map[string]map[string]struct{}),
		inflight:    make(map[string]*flight),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "narration-cache")
	return c
}

// Synthesize returns the segment for req, reusing a completed entry or joining
// an identical in-flight request when one exists. Only one synthesis (and
// upload) call is ever outstanding per cache key. Cancelling ctx abandons the
// wait but not the shared call, whose result still lands in the cache.
func (c *Cache) Synthesize(ctx context.Context, req Request) (*Segment, error) {
	if c.synth == nil {
		return nil, fmt.Errorf("narration synthesize: no synthesizer configured")
	}
	key := req.Key()

	c.mu.Lock()
	if seg, ok := c.entries[key]; ok {
		c.addOwnerLocked(key, req.SceneID)
		c.mu.Unlock()
		return seg, nil
	}
	f, ok := c.inflight[key]
	if !ok {
		f = &flight{epoch: c.epoch, tokens: make(map[string]uint64)}
		c.inflight[key] = f
	}
	f.waiters++
	if _, joined := f.tokens[req.SceneID]; !joined {
		f.tokens[req.SceneID] = c.generations[req.SceneID]
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), key, f, req)
	})

	select {
	case res := <-ch:
		c.leave(key, f)
		if res.Err != nil {
			// A caller that registered f after the failing call removed its own
			// flight still joined that call, so f must not outlive it.
			c.finish(key, f)
			return nil, res.Err
		}
		return res.Val.(*Segment), nil
	case <-ctx.Done():
		c.leave(key, f)
		return nil, ctx.Err()
	}
}

func (c *Cache) fill(ctx context.Context, key string, f *flight, req Request) (*Segment, error) {
	c.mu.Lock()
	if seg, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return seg, nil
	}
	c.mu.Unlock()

	audio, err := c.synth.Synthesize(ctx, req.VoiceID, req.Markup)
	if err != nil {
		c.finish(key, f)
		return nil, fmt.Errorf("narration synthesize: %w", err)
	}
	seg := &Segment{
		SceneID:         req.SceneID,
		SceneIndex:      req.SceneIndex,
		PartIndex:       req.PartIndex,
		Markup:          req.Markup,
		Audio:           audio.Data,
		DurationSeconds: audio.DurationSeconds,
		CacheKey:        key,
	}
	if c.uploader != nil {
		url, err := c.uploader.Upload(ctx, fmt.Sprintf("%s-%d.mp3", textutil.SanitizeToken(req.SceneID), req.PartIndex), audio.Data)
		if err != nil {
			c.finish(key, f)
			return nil, fmt.Errorf("narration upload: %w", err)
		}
		seg.URL = url
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	if c.supersededLocked(f) {
		c.logger.Debug("discarding superseded narration result", logging.String(logging.FieldCacheKey, key))
		return seg, nil
	}
	c.entries[key] = seg
	for sceneID := range f.tokens {
		c.addOwnerLocked(key, sceneID)
	}
	return seg, nil
}

func (c *Cache) finish(key string, f *flight) {
	c.mu.Lock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	f.waiters--
	c.mu.Unlock()
}

func (c *Cache) supersededLocked(f *flight) bool {
	if f.epoch != c.epoch {
		return true
	}
	for sceneID, token := range f.tokens {
		if c.generations[sceneID] != token {
			return true
		}
	}
	return false
}

func (c *Cache) addOwnerLocked(key, sceneID string) {
	owners, ok := c.owners[key]
	if !ok {
		owners = make(map[string]struct{})
		c.owners[key] = owners
	}
	owners[sceneID] = struct{}{}
}

// Lookup returns a completed segment without triggering synthesis.
func (c *Cache) Lookup(key string) (*Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seg, ok := c.entries[key]
	return seg, ok
}

// InFlight reports whether a request for key is outstanding and how many
// callers are waiting on it.
func (c *Cache) InFlight(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.inflight[key]
	if !ok {
		return 0, false
	}
	return f.waiters, true
}

// InvalidateScene drops every completed and in-flight entry requested by the
// scene. Matching is by scene ID so reordering never strands cached audio.
func (c *Cache) InvalidateScene(sceneID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[sceneID]++
	dropped := 0
	for key, owners := range c.owners {
		if _, ok := owners[sceneID]; !ok {
			continue
		}
		delete(c.entries, key)
		delete(c.owners, key)
		dropped++
	}
	for key, f := range c.inflight {
		if _, ok := f.tokens[sceneID]; !ok {
			continue
		}
		delete(c.inflight, key)
		c.group.Forget(key)
		dropped++
	}
	return dropped
}

// Retain evicts completed entries not owned by any of the live scenes.
func (c *Cache) Retain(liveSceneIDs []string) int {
	live := make(map[string]struct{}, len(liveSceneIDs))
	for _, id := range liveSceneIDs {
		live[id] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for key, owners := range c.owners {
		keep := false
		for id := range owners {
			if _, ok := live[id]; ok {
				keep = true
				break
			}
		}
		if keep {
			continue
		}
		delete(c.entries, key)
		delete(c.owners, key)
		evicted++
	}
	return evicted
}

// Reset empties the cache. Requests still in flight complete but are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for key := range c.inflight {
		c.group.Forget(key)
	}
	c.entries = make(map[string]*Segment)
	c.owners = make(map[string]map[string]struct{})
	c.inflight = make(map[string]*flight)
}

// Len returns the number of completed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
