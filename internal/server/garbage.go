package server

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/api"
)

// tusdNamePattern is what tusd-created files look like: a 32-hex upload id,
// optionally with the .info sidecar suffix. Cleanup only ever touches names
// matching it, to avoid deleting something foreign.
var tusdNamePattern = regexp.MustCompile(`^[0-9a-f]{32}(\.info)?$`)

func isTusdFile(name string) bool {
	return tusdNamePattern.MatchString(name)
}

// tusdGarbage classifies the contents of the tusd data directory. A file is
// garbage when it is an unpaired data/.info file, or when its .info refers
// to a dataset that no longer exists in the live set. Unparsable .info
// files are left alone.
func tusdGarbage(fs billy.Filesystem, names []string, liveDatasets map[string]bool) map[string]bool {
	candidates := map[string]bool{}
	for _, name := range names {
		if isTusdFile(name) {
			candidates[name] = true
		}
	}
	infos := map[string]bool{}
	datas := map[string]bool{}
	for name := range candidates {
		if strings.HasSuffix(name, ".info") {
			infos[name] = true
		} else {
			datas[name] = true
		}
	}

	garbage := map[string]bool{}
	for name := range datas {
		if !infos[name+".info"] {
			garbage[name] = true
		}
	}
	for name := range infos {
		if !datas[strings.TrimSuffix(name, ".info")] {
			garbage[name] = true
		}
	}

	// Paired uploads are stale when their dataset is gone.
	for name := range infos {
		if garbage[name] {
			continue
		}
		data, err := util.ReadFile(fs, name)
		if err != nil {
			continue
		}
		var upload api.Upload
		if err := json.Unmarshal(data, &upload); err != nil {
			continue
		}
		if ds, ok := upload.MetaData[api.MetaDataset]; ok && liveDatasets[ds] {
			continue
		}
		garbage[name] = true
		garbage[strings.TrimSuffix(name, ".info")] = true
	}
	return garbage
}

// tusdGarbageSweep periodically removes abandoned upload files from the
// tusd data directory.
func (s *Server) tusdGarbageSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collectTusdGarbage()
		}
	}
}

func (s *Server) collectTusdGarbage() {
	entries, err := s.tusdFS.ReadDir(".")
	if err != nil {
		s.log.Warn("cannot list tusd data directory", zap.Error(err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	live := map[string]bool{}
	for _, id := range s.datasets.List(nil) {
		live[id.String()] = true
	}
	for name := range tusdGarbage(s.tusdFS, names, live) {
		if err := s.tusdFS.Remove(name); err != nil {
			s.log.Warn("cannot remove stale upload file",
				zap.String("name", name), zap.Error(err))
		} else {
			s.log.Debug("removed stale upload file", zap.String("name", name))
		}
	}
}
