package field

import (
	"encoding/base64"
	"strings"
	"time"
)

// MediaFile is the content held by a media field
type MediaFile interface {
	// CleanedData returns the upload form of the content, or nil when
	// nothing new has to be sent
	CleanedData() (any, error)
	// LastModified changes whenever new content is attached
	LastModified() time.Time
}

// MediaCloner is implemented by media files that can be copied. A field
// keeps separate copies for its value and its baseline only when the file
// is a *File or a MediaCloner; any other MediaFile is shared by both, so
// changes made through it are not reported as updates.
type MediaCloner interface {
	Clone() MediaFile
}

// File is the default MediaFile. Files loaded from the backend are remote:
// they carry a URL or metadata but nothing to upload.
type File struct {
	Name        string
	ContentType string
	URL         string
	Data        []byte

	modified time.Time
	pending  bool
}

// NewFile creates a file with content to upload
func NewFile(name, contentType string, data []byte) *File {
	f := &File{}
	f.Attach(name, contentType, data)
	return f
}

// Attach replaces the content with new data to upload
func (f *File) Attach(name, contentType string, data []byte) {
	f.Name = name
	f.ContentType = contentType
	f.Data = append([]byte(nil), data...)
	f.pending = true

	t := time.Now()
	if !t.After(f.modified) {
		t = f.modified.Add(time.Nanosecond)
	}
	f.modified = t
}

// Pending reports whether the file has content not yet uploaded
func (f *File) Pending() bool { return f.pending }

// LastModified implements MediaFile
func (f *File) LastModified() time.Time { return f.modified }

// CleanedData implements MediaFile. Pending content is base64 encoded.
func (f *File) CleanedData() (any, error) {
	if !f.pending {
		return nil, nil
	}
	return base64.StdEncoding.EncodeToString(f.Data), nil
}

// Clone implements MediaCloner
func (f *File) Clone() MediaFile { return f.clone() }

func (f *File) clone() *File {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

// Media holds an uploaded or uploadable file
type Media struct {
	scalar[MediaFile, mediaKind]
}

type mediaKind struct{}

func (mediaKind) convert(f *base, v any) (MediaFile, error) {
	switch t := v.(type) {
	case nil:
		return &File{}, nil
	case *File:
		if t == nil {
			return &File{}, nil
		}
		return t.clone(), nil
	case MediaFile:
		return mediaKind{}.copy(t), nil
	case string:
		return remoteFile(t), nil
	case map[string]any:
		// extended media info: {file, name, content_type, length}
		file := &File{}
		if s, ok := t["file"].(string); ok {
			file = remoteFile(s)
		}
		if s, ok := t["name"].(string); ok {
			file.Name = s
		}
		if s, ok := t["content_type"].(string); ok {
			file.ContentType = s
		}
		return file, nil
	default:
		return nil, newTypeError(f.Path(), "media", v)
	}
}

// remoteFile wraps what the backend returns for stored media: a URL, or the
// base64 content itself
func remoteFile(s string) *File {
	if strings.Contains(s, "://") || strings.HasPrefix(s, "/") {
		return &File{URL: s}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return &File{Data: data}
	}
	return &File{URL: s}
}

func (mediaKind) copy(v MediaFile) MediaFile {
	switch t := v.(type) {
	case *File:
		if t != nil {
			return t.clone()
		}
	case MediaCloner:
		return t.Clone()
	}
	return v
}

func (mediaKind) equal(a, b MediaFile) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.LastModified().Equal(b.LastModified())
}

func (mediaKind) validate(*base, MediaFile) error { return nil }

func (mediaKind) clean(_ *base, v MediaFile) (any, error) {
	if v == nil {
		return nil, nil
	}
	return v.CleanedData()
}
