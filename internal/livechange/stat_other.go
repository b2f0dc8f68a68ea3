//go:build !linux && !darwin

package livechange

import "os"

// fileIdentity stats path and builds the cache key standing in for "content
// unchanged since last read". Platforms without a change-time in their stat
// result fall back to mtime and size alone.
func fileIdentity(path string) (fileKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileKey{}, err
	}
	return fileKey{
		path:    path,
		mtimeNS: info.ModTime().UnixNano(),
		size:    info.Size(),
	}, nil
}
