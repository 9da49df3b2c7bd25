package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ReplaySource plays a directory of still images at a fixed rate,
// standing in for a live capture device during development and soak tests.
type ReplaySource struct {
	dir    string
	fps    float64
	loop   bool
	frames chan Frame

	mu      sync.Mutex
	stopCh  chan struct{}
	started bool
}

// NewReplaySource creates a replay source over the images in dir.
func NewReplaySource(dir string, fps float64, loop bool) *ReplaySource {
	if fps <= 0 {
		fps = 30
	}
	return &ReplaySource{
		dir:    dir,
		fps:    fps,
		loop:   loop,
		frames: make(chan Frame, 1),
		stopCh: make(chan struct{}),
	}
}

// Start begins emitting frames. Delivery is lossy: if the consumer is not
// ready, the frame is dropped, matching live-camera semantics.
func (s *ReplaySource) Start(ctx context.Context) error {
	paths, err := s.listImages()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("replay source: no images in %s", s.dir)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("replay source already started")
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx, paths)
	return nil
}

func (s *ReplaySource) run(ctx context.Context, paths []string) {
	defer close(s.frames)

	interval := time.Duration(float64(time.Second) / s.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if idx >= len(paths) {
				if !s.loop {
					return
				}
				idx = 0
			}
			img, err := imaging.Open(paths[idx])
			idx++
			if err != nil {
				slog.Debug("replay decode failed", "path", paths[idx-1], "error", err)
				continue
			}
			seq++
			select {
			case s.frames <- Frame{Image: img, Timestamp: time.Now(), Seq: seq}:
			default:
				// Consumer busy; drop like a live device would.
			}
		}
	}
}

// Stop halts delivery.
func (s *ReplaySource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Frames returns the delivery channel.
func (s *ReplaySource) Frames() <-chan Frame {
	return s.frames
}

func (s *ReplaySource) listImages() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("replay source: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			paths = append(paths, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
