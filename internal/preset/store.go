package preset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gamergamma/internal/atomicfile"
	"gamergamma/internal/vcp"
)

const maxDocumentBytes int64 = 4 << 20 // 4MB

var (
	// ErrPersistence wraps every read or write failure of the document file.
	ErrPersistence = errors.New("preset document persistence failure")
	// ErrUnknownPreset is returned when an update names a preset id that
	// does not exist.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrOutOfRange is returned when an update carries a gamma or vibrance
	// value outside the range its display and mode accept.
	ErrOutOfRange = errors.New("preset value out of range")
)

// BaselineProber reads the values a baseline is built from.
type BaselineProber interface {
	MonitorName(ctx context.Context, display int) (string, error)
	ReadVCP(ctx context.Context, display int, code vcp.Code) (vcp.Reading, error)
}

// Store is the on-disk preset document plus an in-memory copy that is
// replaced after every successful Load and Save.
type Store struct {
	path   string
	prober BaselineProber

	mu  sync.RWMutex
	doc Document

	writeFn func(path string, data []byte, perm os.FileMode) error
}

// NewStore returns a store for the document at path. prober may be nil when
// baseline capture is not needed.
func NewStore(path string, prober BaselineProber) *Store {
	return &Store{
		path:    path,
		prober:  prober,
		doc:     DefaultDocument(),
		writeFn: atomicfile.Write,
	}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. An absent file is created from defaults. A legacy
// document is upgraded in memory only; the file is rewritten on the next
// Save. On read or parse failure the defaults are returned together with an
// error wrapping ErrPersistence, and the in-memory copy is reset to them.
func (s *Store) Load() (Document, error) {
	raw, err := readLimitedFile(s.path, maxDocumentBytes)
	if errors.Is(err, os.ErrNotExist) {
		doc := DefaultDocument()
		slog.Info("[preset] document not found, writing defaults", "path", s.path)
		if err := s.Save(doc); err != nil {
			return doc, err
		}
		return doc.Clone(), nil
	}
	if err != nil {
		return s.fallback(fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err))
	}

	doc, upgraded, err := decodeDocument(raw)
	if err != nil {
		return s.fallback(fmt.Errorf("%w: %s: %w", ErrPersistence, s.path, err))
	}
	if upgraded {
		slog.Info("[preset] upgraded legacy document in memory", "path", s.path, "presets", len(doc.Presets))
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return doc.Clone(), nil
}

// Reload re-reads the document after an external edit. Unlike Load, a read
// or parse failure leaves the in-memory copy untouched.
func (s *Store) Reload() (Document, error) {
	raw, err := readLimitedFile(s.path, maxDocumentBytes)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err)
	}
	doc, _, err := decodeDocument(raw)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("%w: %s: %w", ErrPersistence, s.path, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return doc.Clone(), nil
}

func (s *Store) fallback(err error) (Document, error) {
	slog.Warn("[WARN-PRESET] failed to load document, using defaults", "path", s.path, "error", err)
	doc := DefaultDocument()
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return doc.Clone(), err
}

// Save atomically replaces the document file with doc and, on success,
// re-syncs the in-memory copy.
func (s *Store) Save(doc Document) error {
	doc = doc.Clone()
	raw, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	raw = append(raw, '\n')
	if err := s.writeFn(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	slog.Debug("[DEBUG-PRESET] document saved", "path", s.path)
	return nil
}

// Snapshot returns a copy of the in-memory document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// UpdatePreset replaces preset id and persists the document. The previous
// document stays in effect when the save fails.
func (s *Store) UpdatePreset(id string, p Preset) (Document, error) {
	doc := s.Snapshot()
	if _, ok := doc.Presets[id]; !ok {
		return doc, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	if p.Display < 1 {
		return doc, fmt.Errorf("preset %q: display must be positive, got %d", id, p.Display)
	}
	if _, ok := ParseVibranceMode(string(p.VibranceMode)); !ok {
		return doc, fmt.Errorf("preset %q: unknown vibrance mode %q", id, p.VibranceMode)
	}
	p.VibranceMode, _ = ParseVibranceMode(string(p.VibranceMode))
	if p.Gamma < vcp.GammaMin || p.Gamma > vcp.GammaMax {
		return doc, fmt.Errorf("%w: preset %q gamma %d not in [%d, %d]", ErrOutOfRange, id, p.Gamma, vcp.GammaMin, vcp.GammaMax)
	}
	limits := UnknownLimits()
	if b, ok := doc.Baseline(p.Display); ok {
		limits = LimitsOf(b)
	}
	if lo, hi := VibranceRange(p.VibranceMode, limits); p.Vibrance < lo || p.Vibrance > hi {
		return doc, fmt.Errorf("%w: preset %q %s vibrance %d not in [%d, %d]", ErrOutOfRange, id, p.VibranceMode, p.Vibrance, lo, hi)
	}
	doc.Presets[id] = p
	if err := s.Save(doc); err != nil {
		return s.Snapshot(), err
	}
	return doc.Clone(), nil
}

// Baseline returns the in-memory baseline for display.
func (s *Store) Baseline(display int) (MonitorBaseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Baseline(display)
}

// Limits returns the maxima recorded for display, LimitUnknown where no
// baseline reported one.
func (s *Store) Limits(display int) Limits {
	b, ok := s.Baseline(display)
	if !ok {
		return UnknownLimits()
	}
	return LimitsOf(b)
}

// CaptureBaseline probes brightness, contrast, gamma and saturation of
// display and merges the result into the document. ok is false when none of
// the controls could be read; nothing is persisted in that case.
func (s *Store) CaptureBaseline(ctx context.Context, display int) (MonitorBaseline, bool, error) {
	if s.prober == nil {
		return MonitorBaseline{}, false, errors.New("capture baseline: no prober configured")
	}
	if display < 1 {
		return MonitorBaseline{}, false, fmt.Errorf("capture baseline: display must be positive, got %d", display)
	}

	name, err := s.prober.MonitorName(ctx, display)
	if err != nil || name == "" {
		slog.Debug("[DEBUG-PRESET] monitor name unavailable", "display", display, "error", err)
		name = "Display " + strconv.Itoa(display)
	}
	b := MonitorBaseline{Name: name}

	read := func(code vcp.Code) vcp.Reading {
		r, err := s.prober.ReadVCP(ctx, display, code)
		if err != nil {
			slog.Debug("[DEBUG-PRESET] vcp read failed", "display", display, "code", code, "error", err)
			return vcp.Reading{}
		}
		return r
	}

	if r := read(vcp.CodeBrightness); r.HasValue {
		b.Brightness, b.BrightnessMax = intPtr(r.Current), intPtr(r.Max)
	}
	if r := read(vcp.CodeContrast); r.HasValue {
		b.Contrast, b.ContrastMax = intPtr(r.Current), intPtr(r.Max)
	}
	if r := read(vcp.CodeGamma); r.HasHighByte || r.HasValue {
		if r.HasHighByte {
			b.GammaSH = intPtr(r.HighByte)
		}
		if r.HasValue {
			b.GammaMax = intPtr(r.Max)
		}
	}
	if r := read(vcp.CodeSaturation); r.HasValue {
		b.Vibrance, b.VibranceMax = intPtr(r.Current), intPtr(r.Max)
	}
	if err := ctx.Err(); err != nil {
		return MonitorBaseline{}, false, fmt.Errorf("capture baseline: %w", err)
	}

	if !b.HasReadings() {
		slog.Info("[preset] no readable controls, baseline not stored", "display", display, "name", name)
		return b, false, nil
	}

	doc := s.Snapshot()
	doc.Monitors[strconv.Itoa(display)] = b
	if err := s.Save(doc); err != nil {
		return b, true, err
	}
	slog.Info("[preset] baseline captured", "display", display, "name", name)
	return b.Clone(), true, nil
}

func intPtr(v int) *int { return &v }

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxBytes)
	}
	return raw, nil
}
