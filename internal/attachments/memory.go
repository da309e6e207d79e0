package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Memory keeps uploads in process and serves them back over HTTP. Used in
// demo mode and tests.
type Memory struct {
	baseURL string

	mu    sync.RWMutex
	files map[string]memFile
}

type memFile struct {
	contentType string
	data        []byte
}

// NewMemory returns an uploader whose URLs start with baseURL, for example
// "/files".
func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   make(map[string]memFile),
	}
}

func (m *Memory) Upload(ctx context.Context, filename, contentType string, body io.Reader) (records.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return records.Attachment{}, err
	}
	id := PublicID(filename)
	if id == "" {
		return records.Attachment{}, fmt.Errorf("%w: %q", ErrInvalidFile, filename)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return records.Attachment{}, fmt.Errorf("%w: read %s: %w", ErrInvalidFile, filename, err)
	}

	m.mu.Lock()
	m.files[id] = memFile{contentType: contentType, data: data}
	m.mu.Unlock()

	return records.Attachment{URL: m.baseURL + "/" + url.PathEscape(id), Name: DisplayName(filename)}, nil
}

// Len reports how many distinct files are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// ServeHTTP serves a stored file by the last path segment.
func (m *Memory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	f, ok := m.files[id]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if f.contentType != "" {
		w.Header().Set("Content-Type", f.contentType)
	}
	_, _ = w.Write(f.data)
}
