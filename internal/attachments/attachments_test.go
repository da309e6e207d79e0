package attachments

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	tests := map[string]string{
		"resultado.pdf":          "resultado",
		"Hemograma Ana.PDF":      "Hemograma Ana",
		"laudo.final.pdf":        "laudo.final",
		"scan.png":               "scan.png",
		`C:\Users\lab\exame.pdf`: "exame",
		"../../etc/passwd":       "passwd",
		"  ":                     "",
		"/":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, PublicID(in), in)
	}
}

func TestMemory_UploadAndServe(t *testing.T) {
	m := NewMemory("/files/")
	ctx := context.Background()

	a, err := m.Upload(ctx, "Resultado Ana.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "/files/Resultado%20Ana", a.URL)
	assert.Equal(t, "Resultado Ana.pdf", a.Name)

	// Same name overwrites.
	_, err = m.Upload(ctx, "Resultado Ana.pdf", "application/pdf", strings.NewReader("%PDF-1.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, a.URL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.5", rec.Body.String())

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemory_RejectsNamelessFile(t *testing.T) {
	_, err := NewMemory("/files").Upload(context.Background(), " ", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3_Upload(t *testing.T) {
	fake := &fakePutter{}
	up := newS3(fake, S3Config{Bucket: "lab-results", Region: "sa-east-1", Prefix: "/exams/"})

	a, err := up.Upload(context.Background(), "Laudo Caio.pdf", "application/pdf", strings.NewReader("data"))
	require.NoError(t, err)

	assert.Equal(t, "lab-results", *fake.in.Bucket)
	assert.Equal(t, "exams/Laudo Caio.pdf", *fake.in.Key)
	assert.Equal(t, "application/pdf", *fake.in.ContentType)
	assert.Equal(t, int64(4), *fake.in.ContentLength)
	assert.Equal(t, "data", fake.body)

	assert.Equal(t, "https://lab-results.s3.sa-east-1.amazonaws.com/exams/Laudo%20Caio.pdf", a.URL)
	assert.Equal(t, "Laudo Caio.pdf", a.Name)
}

func TestS3_PublicBaseURLAndFailure(t *testing.T) {
	fake := &fakePutter{err: errors.New("access denied")}
	up := newS3(fake, S3Config{Bucket: "b", Region: "r", PublicBaseURL: "https://cdn.example/"})

	_, err := up.Upload(context.Background(), "x.pdf", "", strings.NewReader("d"))
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, "application/octet-stream", *fake.in.ContentType)

	fake.err = nil
	a, err := up.Upload(context.Background(), "x.pdf", "", strings.NewReader("d"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.pdf", a.URL)
}

func TestCloudinary_UploadParams(t *testing.T) {
	c, err := NewCloudinary(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "exames"})
	require.NoError(t, err)

	p := c.uploadParams("laudo")
	assert.Equal(t, "laudo", p.PublicID)
	assert.Equal(t, "exames", p.Folder)
	assert.Equal(t, "image", p.ResourceType)
	require.NotNil(t, p.Overwrite)
	assert.True(t, *p.Overwrite)
}
