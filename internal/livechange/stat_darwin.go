//go:build darwin

package livechange

import (
	"os"
	"syscall"
)

// fileIdentity stats path and builds the cache key standing in for "content
// unchanged since last read".
func fileIdentity(path string) (fileKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileKey{}, err
	}
	key := fileKey{
		path:    path,
		mtimeNS: info.ModTime().UnixNano(),
		size:    info.Size(),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		key.ctimeNS = st.Ctimespec.Nano()
	}
	return key, nil
}
