package dirtree

import "time"

// DirectoryProfile is the lightweight summary GetProfile returns
// (spec.md §4.2), distinct from the full Node tree.
type DirectoryProfile struct {
	Path          string
	TotalSize     int64
	FileCount     int64
	DirCount      int64
	AvgFileSize   float64
	LastScanned   time.Time
	ProfileSuccess bool
	ProfileError  string
}

// summarize reduces a built tree into a DirectoryProfile.
func summarize(path string, n *Node, scannedAt time.Time) DirectoryProfile {
	dirCount := countDirs(n) - 1 // exclude the root itself

	p := DirectoryProfile{
		Path:           path,
		TotalSize:      n.TotalSize,
		FileCount:      n.TotalFileCount,
		DirCount:       int64(dirCount),
		LastScanned:    scannedAt,
		ProfileSuccess: true,
	}

	if p.FileCount > 0 {
		p.AvgFileSize = float64(p.TotalSize) / float64(p.FileCount)
	}

	return p
}

func countDirs(n *Node) int {
	total := 1
	for _, c := range n.children {
		total += countDirs(c)
	}

	return total
}

func failedProfile(path string, err error) DirectoryProfile {
	return DirectoryProfile{
		Path:          path,
		ProfileSuccess: false,
		ProfileError:  err.Error(),
	}
}
