package upload

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/Skotchmaster/online_store/internal/imaging"
	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/objectstore"
)

// ObjectPrefix is prepended to every uploaded object name.
const ObjectPrefix = "imageupload/"

var whitespace = regexp.MustCompile(`\s`)

type Publisher interface {
	Publish(ctx context.Context, data []byte, key, directory, bucket string) (objectstore.Reference, error)
}

// File is an uploaded file held in memory for the duration of one request.
type File struct {
	Data     []byte
	MIMEType string
	Filename string
}

type Pipeline struct {
	Publisher   Publisher
	Directory   string
	Bucket      string
	TargetBytes int
	Quality     int
	Now         func() time.Time
}

func NewPipeline(pub Publisher, directory, bucket string) *Pipeline {
	return &Pipeline{
		Publisher:   pub,
		Directory:   directory,
		Bucket:      bucket,
		TargetBytes: imaging.DefaultTargetBytes,
		Quality:     imaging.DefaultQuality,
		Now:         time.Now,
	}
}

// Process runs an image through normalize, compress and publish. Files that
// are not images are not stored and yield a nil reference.
func (p *Pipeline) Process(ctx context.Context, f File) (*objectstore.Reference, error) {
	l := logging.FromContext(ctx).With("component", "upload.pipeline", "filename", f.Filename)

	if !imaging.IsImage(f.MIMEType) {
		l.Debug("upload_skipped", "reason", "not an image", "mime", f.MIMEType)
		return nil, nil
	}

	img, err := imaging.Normalize(f.Data)
	if err != nil {
		return nil, err
	}

	out, err := imaging.Compress(img, p.TargetBytes, p.Quality)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", f.Filename, err)
	}
	l.Info("image_compressed",
		"in_bytes", len(f.Data),
		"out_bytes", len(out.Data),
		"quality", out.Quality,
		"attempts", out.Attempts,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)

	ref, err := p.Publisher.Publish(ctx, out.Data, ObjectPrefix+ObjectName(f.Filename, p.Now()), p.Directory, p.Bucket)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// ObjectName builds "<name>_<unix millis><ext>" from the client filename.
// The extension follows the JPEG re-encoding.
func ObjectName(filename string, now time.Time) string {
	name := path.Base(whitespace.ReplaceAllString(filename, "_"))
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
	default:
		ext = ".jpg"
	}
	return fmt.Sprintf("%s_%d%s", base, now.UnixMilli(), ext)
}
