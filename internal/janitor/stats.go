package janitor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"feed2podcast/internal/cachekey"
	"feed2podcast/internal/fileutil"
	"feed2podcast/internal/services"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Stats describes current cache usage.
type Stats struct {
	Root         string    `json:"root"`
	Policy       string    `json:"policy"`
	Files        int       `json:"files"`
	TotalBytes   int64     `json:"total_bytes"`
	DemoFiles    int       `json:"demo_files"`
	DemoBytes    int64     `json:"demo_bytes"`
	Oldest       time.Time `json:"oldest,omitzero"`
	Newest       time.Time `json:"newest,omitzero"`
	FreeBytes    uint64    `json:"free_bytes"`
	TotalFSBytes uint64    `json:"total_fs_bytes"`
}

// ReclaimableBytes is the cache size eligible for eviction.
func (s Stats) ReclaimableBytes() int64 { return s.TotalBytes - s.DemoBytes }

// Stats reports cache usage. Oldest and Newest cover audio entries outside
// the demo subtree.
func (j *Janitor) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Root: j.root, Policy: j.policy.String()}
	files, err := fileutil.WalkFiles(j.root)
	if err != nil {
		return s, services.Wrap(services.ErrInternalIO, "janitor", "stats", j.root, err)
	}
	demoPrefix := j.demoDir + string(filepath.Separator)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Files++
		s.TotalBytes += f.Size
		if strings.HasPrefix(f.Path, demoPrefix) {
			s.DemoFiles++
			s.DemoBytes += f.Size
			continue
		}
		if fileutil.IsTempName(f.Path) || !strings.HasSuffix(f.Path, cachekey.AudioExt) {
			continue
		}
		if s.Oldest.IsZero() || f.ModTime.Before(s.Oldest) {
			s.Oldest = f.ModTime
		}
		if f.ModTime.After(s.Newest) {
			s.Newest = f.ModTime
		}
	}

	statfs := j.statfs
	if statfs == nil {
		statfs = realStatfs
	}
	total, free, err := statfs(j.root)
	if err != nil {
		if len(files) == 0 {
			// root missing; report what we have
			return s, nil
		}
		return s, services.Wrap(services.ErrInternalIO, "janitor", "statfs", j.root, err)
	}
	s.TotalFSBytes = total
	s.FreeBytes = free
	return s, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
