package aggregation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultThreshold is the minimum distinct event count for membership when a
// segment file does not set one.
const DefaultThreshold = 2

// Segment defines a boolean membership predicate:
// a user is a member when the distinct count of EventName events is >= Threshold.
type Segment struct {
	Name      string `yaml:"name"`
	EventName string `yaml:"event_name"`
	Threshold int    `yaml:"threshold"`
}

// Evaluate applies the membership predicate to a merged distinct count.
func (s Segment) Evaluate(count uint64) bool {
	return count >= uint64(s.Threshold)
}

// rawSegment is the on-disk YAML shape. threshold is optional.
type rawSegment struct {
	Name      string `yaml:"name"`
	EventName string `yaml:"event_name"`
	Threshold *int   `yaml:"threshold"`
}

// SegmentRepository defines the interface for loading segment definitions.
type SegmentRepository interface {
	// Get returns the segment with the given name, or an error if not found.
	Get(ctx context.Context, name string) (*Segment, error)

	// List returns all loaded segments, optionally filtered by event name.
	List(ctx context.Context, eventName string) ([]Segment, error)

	// GetSegments returns all segments sorted by name.
	GetSegments() []Segment
}

// FileSystemSegmentRepository loads segments from *.yaml files in a directory.
// Each file contains exactly one segment at the top level. Segments are loaded
// once at startup and cached in memory.
type FileSystemSegmentRepository struct {
	dir              string
	defaultThreshold int
	segments         map[string]Segment // keyed by Name
}

// NewFileSystemSegmentRepository creates a new repository and eagerly loads
// all segments from dir. Returns an error if any file is malformed or invalid.
func NewFileSystemSegmentRepository(dir string, defaultThreshold int) (*FileSystemSegmentRepository, error) {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}
	repo := &FileSystemSegmentRepository{
		dir:              dir,
		defaultThreshold: defaultThreshold,
		segments:         make(map[string]Segment),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemSegmentRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no segments directory: valid (zero segments configured)
	}
	if err != nil {
		return fmt.Errorf("segment dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("segment path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading segment dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading segment file %s: %w", path, err)
		}

		var raw rawSegment
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing segment file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		seg, err := raw.toSegment(r.defaultThreshold)
		if err != nil {
			return err
		}
		if _, exists := r.segments[seg.Name]; exists {
			return fmt.Errorf("segment %q: duplicate segment name (check multiple YAML files)", seg.Name)
		}
		r.segments[seg.Name] = seg
	}
	return nil
}

func (raw rawSegment) toSegment(defaultThreshold int) (Segment, error) {
	if raw.EventName == "" {
		return Segment{}, fmt.Errorf("segment %q: event_name must not be empty", raw.Name)
	}
	threshold := defaultThreshold
	if raw.Threshold != nil {
		threshold = *raw.Threshold
	}
	if threshold < 1 {
		return Segment{}, fmt.Errorf("segment %q: threshold must be >= 1, got %d", raw.Name, threshold)
	}
	return Segment{
		Name:      raw.Name,
		EventName: raw.EventName,
		Threshold: threshold,
	}, nil
}

// Get returns the segment with the given name, or an error if not found.
func (r *FileSystemSegmentRepository) Get(_ context.Context, name string) (*Segment, error) {
	seg, ok := r.segments[name]
	if !ok {
		return nil, fmt.Errorf("segment %q not found", name)
	}
	return &seg, nil
}

// List returns all loaded segments, optionally filtered by event name.
func (r *FileSystemSegmentRepository) List(_ context.Context, eventName string) ([]Segment, error) {
	var out []Segment
	for _, seg := range r.GetSegments() {
		if eventName != "" && seg.EventName != eventName {
			continue
		}
		out = append(out, seg)
	}
	return out, nil
}

// GetSegments returns all segments sorted by name.
func (r *FileSystemSegmentRepository) GetSegments() []Segment {
	segments := make([]Segment, 0, len(r.segments))
	for _, seg := range r.segments {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Name < segments[j].Name })
	return segments
}

// EventNames returns the distinct event names referenced by segments, sorted.
func EventNames(segments []Segment) []string {
	seen := make(map[string]struct{}, len(segments))
	var names []string
	for _, seg := range segments {
		if _, ok := seen[seg.EventName]; ok {
			continue
		}
		seen[seg.EventName] = struct{}{}
		names = append(names, seg.EventName)
	}
	sort.Strings(names)
	return names
}
