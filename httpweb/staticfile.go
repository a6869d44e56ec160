package httpweb

import (
	"os"
	"path/filepath"

	"github.com/rhagen325/RepRapFirmware/core"
)

const (
	indexPageFile    = "index.html"
	oldIndexPageFile = "reprap.htm"
	four04PageFile   = "404.html"
)

// MaxExpectedWebDirFilenameLength mirrors the firmware's guard against
// filenames too long for the ".gz" suffix probe to ever overflow a path
// buffer; Go strings don't need the guard for safety, but rejecting early
// keeps SendFile's fallback chain identical to the original.
const MaxExpectedWebDirFilenameLength = 255

// contentTypeFor maps a filename's extension to a response Content-Type the
// way SendFile's if/else chain does.
func contentTypeFor(name string) string {
	switch {
	case core.HasSuffixFoldASCII(name, ".png"):
		return "image/png"
	case core.HasSuffixFoldASCII(name, ".ico"):
		return "image/x-icon"
	case core.HasSuffixFoldASCII(name, ".js"):
		return "application/javascript"
	case core.HasSuffixFoldASCII(name, ".css"):
		return "text/css"
	case core.HasSuffixFoldASCII(name, ".htm"), core.HasSuffixFoldASCII(name, ".html"):
		return "text/html"
	case core.HasSuffixFoldASCII(name, ".zip"):
		return "application/zip"
	case core.HasSuffixFoldASCII(name, ".g"), core.HasSuffixFoldASCII(name, ".gc"), core.HasSuffixFoldASCII(name, ".gcode"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// openWebFile resolves a web-root-relative request path through the
// ".gz-first, then index fallback" part of SendFile's isWebFile chain; the
// 404 page fallback is left to sendFile, which gets the error and the last
// name tried. It returns the opened file, the name ultimately served
// (for Content-Type and Content-Encoding decisions) and whether that file is
// gzip-encoded on disk.
func (s *Server) openWebFile(requested string) (*os.File, string, bool, error) {
	name := requested
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	if name == "" {
		name = indexPageFile
	}

	if len(name) <= MaxExpectedWebDirFilenameLength {
		for {
			if !core.HasSuffixFoldASCII(name, ".gz") {
				if f, err := os.Open(filepath.Join(s.cfg.WebRoot, name+".gz")); err == nil {
					return f, name, true, nil
				}
			}
			if f, err := os.Open(filepath.Join(s.cfg.WebRoot, name)); err == nil {
				return f, name, false, nil
			}

			switch {
			case core.EqualFoldASCII(name, indexPageFile):
				name = oldIndexPageFile
			case filepath.Ext(name) == "":
				name = indexPageFile
			default:
				f, err := tryOpen(filepath.Join(s.cfg.WebRoot, name))
				return f, name, false, err
			}
		}
	}

	f, err := tryOpen(filepath.Join(s.cfg.WebRoot, name))
	return f, name, false, err
}

func tryOpen(path string) (*os.File, error) {
	return os.Open(path)
}

// sendFile builds the response for a GET of nameOfFileToSend, either from
// the web root (isWebFile, with the .gz/index/404 fallback chain) or from
// the upload root (rr_download), matching HttpResponder::SendFile.
func (s *Server) sendFile(nameOfFileToSend string, isWebFile bool) httpResponse {
	var (
		f    *os.File
		name string
		zip  bool
		err  error
	)

	if isWebFile {
		f, name, zip, err = s.openWebFile(nameOfFileToSend)
		if err != nil && (core.HasSuffixFoldASCII(name, ".html") || core.HasSuffixFoldASCII(name, ".htm")) {
			f, err = tryOpen(filepath.Join(s.cfg.WebRoot, four04PageFile))
			name = four04PageFile
			zip = false
		}
		if err != nil {
			return s.rejectMessage(404, "page not found<br>Check that the upload root is mounted and has the correct files in its web root folder")
		}
	} else {
		f, err = tryOpen(filepath.Join(s.cfg.UploadRoot, nameOfFileToSend))
		name = nameOfFileToSend
		if err != nil {
			return s.rejectMessage(404, "file not found")
		}
	}

	info, statErr := f.Stat()
	if statErr != nil {
		f.Close()
		return s.rejectMessage(404, "file not found")
	}

	resp := httpResponse{status: 200, statusText: "OK", body: f, bodyLen: info.Size()}
	if !isWebFile {
		resp.headers = append(resp.headers,
			[2]string{"Cache-Control", "no-cache, no-store, must-revalidate"},
			[2]string{"Pragma", "no-cache"},
			[2]string{"Expires", "0"},
		)
		s.addCorsHeader(&resp)
	}
	resp.headers = append(resp.headers, [2]string{"Content-Type", contentTypeFor(name)})
	if zip {
		resp.headers = append(resp.headers, [2]string{"Content-Encoding", "gzip"})
	}
	return resp
}
