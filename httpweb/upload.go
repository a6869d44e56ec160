package httpweb

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"
)

// uploadState tracks one in-progress rr_upload, the Go equivalent of the
// firmware's fileBeingUploaded/postFileLength/postFileGotCrc/uploadedBytes
// fields. Because each connection here is its own goroutine doing a
// blocking read loop rather than a polled DoUpload step, the whole upload
// runs to completion inside one dispatch call instead of being resumed
// across many Spin() calls.
type uploadState struct {
	file        *os.File
	path        string
	expected    int64
	written     int64
	crc         uint32
	expectCrc   uint32
	haveCrc     bool
	lastModified time.Time
}

// startUpload creates the destination file under the upload root,
// mirroring StartUpload(FS_PREFIX, filename, ...).
func (s *Server) startUpload(filename string, length int64, expectCrc uint32, haveCrc bool) (*uploadState, error) {
	path := filepath.Join(s.cfg.UploadRoot, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &uploadState{
		file:      f,
		path:      path,
		expected:  length,
		expectCrc: expectCrc,
		haveCrc:   haveCrc,
	}, nil
}

// readBody streams exactly u.expected bytes from r into the destination
// file, accumulating a running CRC-32, mirroring DoUpload's
// ReadBuffer/Write loop collapsed into one blocking pass.
func (u *uploadState) readBody(r io.Reader) error {
	const chunkSize = 8192
	buf := make([]byte, chunkSize)
	remaining := u.expected - u.written
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(r, buf[:n])
		if read > 0 {
			if _, werr := u.file.Write(buf[:read]); werr != nil {
				return werr
			}
			u.crc = crc32.Update(u.crc, crc32.IEEETable, buf[:read])
			u.written += int64(read)
			remaining -= int64(read)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// finish closes the file, applies the last-modified time if one was given,
// and checks the CRC if the client supplied one, mirroring FinishUpload.
func (u *uploadState) finish() (ok bool, crcOk bool) {
	if err := u.file.Close(); err != nil {
		return false, false
	}
	if !u.lastModified.IsZero() {
		_ = os.Chtimes(u.path, u.lastModified, u.lastModified)
	}
	crcOk = !u.haveCrc || u.crc == u.expectCrc
	if !crcOk {
		_ = os.Remove(u.path)
	}
	return true, crcOk
}

// cancel discards a partially written upload, mirroring CancelUpload.
func (u *uploadState) cancel() {
	u.file.Close()
	os.Remove(u.path)
}
