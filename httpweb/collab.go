package httpweb

import (
	"os"
	"path/filepath"
	"time"
)

// FileInfo is the subset of a stored file's metadata the fileinfo and
// filelist API calls report.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileInfoScanner lists and describes files under the upload root, standing
// in for the firmware's MassStorage:: file enumeration and
// GetFileInfoResponse's G-code metadata scan.
type FileInfoScanner interface {
	List(dir string) ([]FileInfo, error)
	Stat(name string) (FileInfo, error)
}

// statFileInfoScanner is the default FileInfoScanner, backed directly by
// the OS filesystem under root.
type statFileInfoScanner struct {
	root string
}

func newStatFileInfoScanner(root string) *statFileInfoScanner {
	return &statFileInfoScanner{root: root}
}

func (s *statFileInfoScanner) List(dir string) ([]FileInfo, error) {
	full := filepath.Join(s.root, dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:    e.Name(),
			IsDir:   e.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (s *statFileInfoScanner) Stat(name string) (FileInfo, error) {
	info, err := os.Stat(filepath.Join(s.root, name))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ObjectModelSource answers rr_model queries, standing in for the firmware's
// reprap.GetModelResponse against the live object model tree kept on the
// other side of an sbclink.Link.
type ObjectModelSource interface {
	Model(key, flags string) ([]byte, error)
}

// staticObjectModel is a minimal ObjectModelSource returning a fixed
// top-level object, used until a real sbclink-backed model source is wired
// in by the daemon.
type staticObjectModel struct {
	boardType string
}

func (m staticObjectModel) Model(key, flags string) ([]byte, error) {
	return []byte(`{"key":"` + key + `","result":{"boardType":"` + m.boardType + `"}}`), nil
}

// GCodeInput is where the gcode API call deposits command text for the
// firmware's GCodes task to pick up, standing in for
// NetworkGCodeInput::Put/BufferSpaceLeft. sbclink.FifoBuffer satisfies it
// directly.
type GCodeInput interface {
	Write(data []byte) int
	Free() int
}
