package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SnapshotInfo describes one file in the snapshot tree.
type SnapshotInfo struct {
	Path      string
	ScratchID string
	Taken     time.Time
}

// ListSnapshots returns the snapshots of one scratch id (or of every id when
// id is empty), oldest first. Files whose names do not parse are skipped.
func ListSnapshots(root, id string) ([]SnapshotInfo, error) {
	historyDir := HistoryDir(root)

	var out []SnapshotInfo
	err := filepath.WalkDir(historyDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && p == historyDir {
				return filepath.SkipDir
			}
			slog.Debug("storage: skipping unreadable snapshot entry", "path", p, "err", err)
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, perr := parseSnapshotName(d.Name())
		if perr != nil {
			slog.Debug("storage: skipping unrecognised snapshot file", "path", p, "err", perr)
			return nil
		}
		if id != "" && info.ScratchID != id {
			return nil
		}
		info.Path = p
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list snapshots: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Taken.Equal(out[j].Taken) {
			return out[i].Path < out[j].Path
		}
		return out[i].Taken.Before(out[j].Taken)
	})
	return out, nil
}

// LatestSnapshot returns the newest snapshot for id.
func LatestSnapshot(root, id string) (SnapshotInfo, bool, error) {
	snaps, err := ListSnapshots(root, id)
	if err != nil || len(snaps) == 0 {
		return SnapshotInfo{}, false, err
	}
	return snaps[len(snaps)-1], true, nil
}

// parseSnapshotName parses "{stamp}[-N]_{id}.{ext}".
func parseSnapshotName(name string) (SnapshotInfo, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stamp, id, ok := strings.Cut(stem, "_")
	if !ok || id == "" {
		return SnapshotInfo{}, fmt.Errorf("missing id separator in %q", name)
	}
	if base, counter, found := strings.Cut(stamp, "-"); found {
		if _, err := strconv.Atoi(counter); err != nil {
			return SnapshotInfo{}, fmt.Errorf("bad disambiguator in %q", name)
		}
		stamp = base
	}

	const secondsLen = len(snapshotTimeLayout)
	if len(stamp) != secondsLen+6 {
		return SnapshotInfo{}, fmt.Errorf("bad timestamp length in %q", name)
	}
	taken, err := time.ParseInLocation(snapshotTimeLayout, stamp[:secondsLen], time.Local)
	if err != nil {
		return SnapshotInfo{}, err
	}
	micros, err := strconv.Atoi(stamp[secondsLen:])
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("bad microseconds in %q", name)
	}

	return SnapshotInfo{
		ScratchID: id,
		Taken:     taken.Add(time.Duration(micros) * time.Microsecond),
	}, nil
}
