// Package fonts loads overlay font faces keyed by family and weight. A face
// that cannot be found or parsed falls back to the built-in Go font so overlay
// rendering is never blocked on a missing file.
package fonts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/singleflight"

	"storyreel/internal/logging"
)

// DefaultWeight is used when a request names no weight.
const DefaultWeight = "400"

// Font is a parsed font ready for rendering.
type Font struct {
	Key      string
	Family   string
	Weight   string
	Path     string
	Fallback bool
	ttf      *truetype.Font
}

// Face returns a face at the given point size.
func (f *Font) Face(size float64) font.Face {
	if size <= 0 {
		size = 48
	}
	return truetype.NewFace(f.ttf, &truetype.Options{Size: size, Hinting: font.HintingFull})
}

// Name returns the family name embedded in the font file.
func (f *Font) Name() string {
	return f.ttf.Name(truetype.NameIDFontFamily)
}

// Key joins family and weight into the cache key form family:weight.
func Key(family, weight string) string {
	weight = strings.TrimSpace(weight)
	if weight == "" {
		weight = DefaultWeight
	}
	return strings.TrimSpace(family) + ":" + weight
}

// ParseKey splits a family:weight key.
func ParseKey(key string) (family, weight string) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return strings.TrimSpace(key), DefaultWeight
	}
	family = strings.TrimSpace(key[:idx])
	weight = strings.TrimSpace(key[idx+1:])
	if weight == "" {
		weight = DefaultWeight
	}
	return family, weight
}

// Loader resolves fonts from a directory of TTF files.
type Loader struct {
	dir      string
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
	group    singleflight.Group

	mu       sync.Mutex
	fonts    map[string]*Font
	fallback *truetype.Font
}

// NewLoader builds a loader rooted at dir. An empty dir serves only the
// built-in fallback.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{
		dir:      dir,
		logger:   logging.NewComponentLogger(logger, "fonts"),
		readFile: os.ReadFile,
		fonts:    make(map[string]*Font),
	}
}

// Load returns the font for family and weight. A missing or corrupt file yields
// the fallback font and a nil error; the fallback is cached under the key so
// the miss is logged once.
func (l *Loader) Load(ctx context.Context, family, weight string) (*Font, error) {
	key := Key(family, weight)
	if f, ok := l.Lookup(key); ok {
		return f, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if f, ok := l.Lookup(key); ok {
			return f, nil
		}
		f, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.fonts[key] = f
		l.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Font), nil
}

func (l *Loader) load(ctx context.Context, key string) (*Font, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	family, weight := ParseKey(key)
	path, data, err := l.find(family, weight)
	if err == nil {
		ttf, parseErr := truetype.Parse(data)
		if parseErr == nil {
			l.logger.Debug("font loaded", logging.String("font", key), logging.String("path", path))
			return &Font{Key: key, Family: family, Weight: weight, Path: path, ttf: ttf}, nil
		}
		err = fmt.Errorf("parse %s: %w", path, parseErr)
	}

	ttf, fbErr := l.fallbackFont()
	if fbErr != nil {
		return nil, fbErr
	}
	logging.WarnWithContext(l.logger, "font unavailable, using fallback", "font_fallback",
		logging.String("font", key),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "place a matching .ttf file in fonts.font_dir"),
		logging.String(logging.FieldImpact, "overlay text renders in the default font"),
	)
	return &Font{Key: key, Family: family, Weight: weight, Fallback: true, ttf: ttf}, nil
}

func (l *Loader) find(family, weight string) (string, []byte, error) {
	if l.dir == "" || family == "" {
		return "", nil, fs.ErrNotExist
	}
	for _, name := range candidates(family, weight) {
		path := filepath.Join(l.dir, name)
		data, err := l.readFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return path, nil, err
		}
	}
	return "", nil, fmt.Errorf("no font file for %s:%s in %s: %w", family, weight, l.dir, fs.ErrNotExist)
}

func candidates(family, weight string) []string {
	bases := []string{family}
	compact := strings.ReplaceAll(family, " ", "")
	if compact != family {
		bases = append(bases, compact)
	}
	if lower := strings.ToLower(compact); lower != compact {
		bases = append(bases, lower)
	}
	out := make([]string, 0, len(bases)*3)
	for _, base := range bases {
		out = append(out, base+"-"+weight+".ttf")
		if weight == DefaultWeight {
			out = append(out, base+"-Regular.ttf", base+".ttf")
		}
	}
	return out
}

func (l *Loader) fallbackFont() (*truetype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fallback != nil {
		return l.fallback, nil
	}
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse built-in font: %w", err)
	}
	l.fallback = ttf
	return ttf, nil
}

// Lookup returns a font that has already been loaded.
func (l *Loader) Lookup(key string) (*Font, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.fonts[key]
	return f, ok
}

// Requester tracks the latest font wanted by one consumer. Loads are shared
// through the Loader, but only the consumer's own newer requests supersede
// each other.
type Requester struct {
	loader *Loader
	mu     sync.Mutex
	gen    uint64
}

// NewRequester returns a requester backed by l.
func (l *Loader) NewRequester() *Requester {
	return &Requester{loader: l}
}

// Request loads key in the background and calls apply with the result unless
// this requester made a newer Request in the meantime. It returns immediately.
func (r *Requester) Request(ctx context.Context, key string, apply func(*Font)) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	go func() {
		family, weight := ParseKey(key)
		f, err := r.loader.Load(ctx, family, weight)
		if err != nil {
			r.loader.logger.Debug("font request abandoned", logging.String("font", key), logging.Error(err))
			return
		}
		r.mu.Lock()
		current := r.gen == gen
		r.mu.Unlock()
		if current && apply != nil {
			apply(f)
		}
	}()
}
