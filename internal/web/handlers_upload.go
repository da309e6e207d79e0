package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/records"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// uploadResponse lists the stored files in the order they were sent.
type uploadResponse struct {
	Attachments []records.Attachment `json:"attachments"`
}

// handleUploadAttachments stores every "files" part and returns the
// attachments to put on an exam. Nothing is written to the sheet here.
func (s *Server) handleUploadAttachments(w http.ResponseWriter, r *http.Request) {
	files, done, err := s.readMultipart(w, r)
	if errors.Is(err, http.ErrNotMultipart) {
		err = core.ErrNoFiles
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer done()

	out, err := s.service.UploadAttachments(r.Context(), files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, uploadResponse{Attachments: out})
}

// readMultipart parses a multipart body of at most MaxUploadSize bytes and
// opens its "files" (or "file") parts. done closes them and removes temp
// files. A body that is not multipart yields http.ErrNotMultipart with any
// url-encoded fields already in r.PostForm.
func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (files []core.AttachmentFile, done func(), err error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("%w: request body too large", core.ErrFileTooLarge)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, err
		}
		return nil, nil, errors.Join(errBadRequest, err)
	}

	var opened []multipart.File
	done = func() {
		for _, f := range opened {
			f.Close()
		}
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.log.Warn("remove multipart temp files", "error", err)
		}
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	files = make([]core.AttachmentFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			done()
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, core.AttachmentFile{
			Name:        fh.Filename,
			ContentType: partContentType(fh),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return files, done, nil
}

func partContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/pdf"
}
