//go:build linux

package classify

import (
	"io/fs"
	"syscall"
	"time"
)

// accessTime extracts the atime from the underlying stat. The second
// return is false when the stat does not carry one (synthetic infos in
// tests, foreign filesystems).
func accessTime(info fs.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(st.Atim.Sec, st.Atim.Nsec), true
}
