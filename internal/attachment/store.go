// Package attachment stores uploaded step images on the local filesystem.
// Files are named <uuid><ext>; the uuid is the attachment id.
package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
)

// Accepted content types and the extension each is stored under.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// File describes one stored file.
type File struct {
	ID      string
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a directory of attachment files.
type Store struct {
	dir       string
	maxBytes  int64
	urlPrefix string
}

// NewStore creates dir if needed. urlPrefix is the public path files are
// served under, e.g. "/api/uploads".
func NewStore(dir string, maxBytes int64, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachment: create dir %s: %w", dir, err)
	}
	return &Store{
		dir:       dir,
		maxBytes:  maxBytes,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Dir returns the directory files are stored in.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the upload size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save validates and stores an upload. Only PNG and JPEG content is accepted,
// judged by the bytes rather than the client's filename or header.
func (s *Store) Save(filename string, r io.Reader) (models.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("attachment: read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return models.Attachment{}, apperr.Validationf("file exceeds the %s size limit", humanBytes(s.maxBytes))
	}
	if len(data) == 0 {
		return models.Attachment{}, apperr.Validationf("file is empty")
	}

	mt := mimetype.Detect(data)
	mime, ext, ok := accepted(mt)
	if !ok {
		return models.Attachment{}, apperr.Validationf("only PNG and JPEG images are allowed (got %s)", mt.String())
	}

	id := uuid.NewString()
	if err := s.write(id+ext, bytes.NewReader(data)); err != nil {
		return models.Attachment{}, err
	}
	return models.Attachment{
		ID:       id,
		Filename: cleanFilename(filename, ext),
		MimeType: mime,
		URL:      s.url(id + ext),
	}, nil
}

// Copy duplicates the file behind a to a new id and returns the new
// attachment. The filename and content type carry over.
func (s *Store) Copy(a models.Attachment) (models.Attachment, error) {
	name, err := s.find(a.ID)
	if err != nil {
		return models.Attachment{}, err
	}
	src, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("attachment: open %s: %w", name, err)
	}
	defer src.Close()

	ext := filepath.Ext(name)
	id := uuid.NewString()
	if err := s.write(id+ext, src); err != nil {
		return models.Attachment{}, err
	}
	return models.Attachment{
		ID:       id,
		Filename: a.Filename,
		MimeType: a.MimeType,
		URL:      s.url(id + ext),
	}, nil
}

// Delete removes the file for id.
func (s *Store) Delete(id string) error {
	name, err := s.find(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFoundf("attachment not found: %s", id)
		}
		return fmt.Errorf("attachment: delete %s: %w", id, err)
	}
	return nil
}

// Path resolves a stored file name (as it appears in an attachment URL) to a
// path on disk. Names that are not <uuid><ext> are rejected.
func (s *Store) Path(name string) (string, error) {
	id, ext, ok := parseName(name)
	if !ok {
		return "", apperr.NotFoundf("file not found: %s", name)
	}
	path := filepath.Join(s.dir, id+ext)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.NotFoundf("file not found: %s", name)
		}
		return "", fmt.Errorf("attachment: stat %s: %w", name, err)
	}
	return path, nil
}

// List returns every stored attachment file. Other files in the directory are
// ignored.
func (s *Store) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("attachment: list %s: %w", s.dir, err)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, _, ok := parseName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{ID: id, Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// find returns the stored file name for id.
func (s *Store) find(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NotFoundf("attachment not found: %s", id)
	}
	for _, ext := range extensions {
		name := id + ext
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return name, nil
		}
	}
	return "", apperr.NotFoundf("attachment not found: %s", id)
}

// write stores r under name via a temp file so readers never see a partial
// file.
func (s *Store) write(name string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("attachment: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("attachment: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("attachment: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("attachment: store %s: %w", name, err)
	}
	return nil
}

func (s *Store) url(name string) string {
	return s.urlPrefix + "/" + name
}

// accepted maps a detected type to one of the allowed types.
func accepted(mt *mimetype.MIME) (mime, ext string, ok bool) {
	for m, e := range extensions {
		if mt.Is(m) {
			return m, e, true
		}
	}
	return "", "", false
}

// parseName splits "<uuid><ext>" and checks both halves.
func parseName(name string) (id, ext string, ok bool) {
	ext = filepath.Ext(name)
	id = strings.TrimSuffix(name, ext)
	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}
	for _, e := range extensions {
		if e == ext {
			return id, ext, true
		}
	}
	return "", "", false
}

// cleanFilename keeps only the base name of the client's filename, falling
// back to a generic name.
func cleanFilename(name, ext string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "image" + ext
	}
	return name
}

func humanBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
