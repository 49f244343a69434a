package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSourceUnavailable marks a data source whose mirrors were all
// exhausted. Callers skip the source and keep the run alive; only the
// boundary resolver treats its absence as fatal.
var ErrSourceUnavailable = errors.New("fetcher: source unavailable")

// Compression identifies how a mirror wraps its payload.
type Compression int

const (
	// CompressionNone means the payload is served as-is.
	CompressionNone Compression = iota
	// CompressionGzip means the payload is a single gzip member.
	CompressionGzip
	// CompressionZip means the payload is a zip whose first entry
	// matching the resource suffix holds the data.
	CompressionZip
)

// Mirror is one candidate endpoint serving the same logical payload.
type Mirror struct {
	URL         string
	Compression Compression
}

// Resource names a logical payload and where its decoded bytes cache on disk.
// The cache file doubles as the idempotency gate: if it exists, no
// mirror is contacted on a re-run.
type Resource struct {
	Name      string // logical name for logs and errors, e.g. "srtm tile S34W071"
	CachePath string // destination for the decoded payload
	Suffix    string // entry suffix to pick inside zip payloads, e.g. ".hgt"
	MinSize   int64  // payloads smaller than this are treated as mirror failures
}

// MirrorFetcher resolves a resource against an ordered mirror list,
// trying each exactly once and stopping at the first success.
type MirrorFetcher struct {
	http Fetcher
	ftp  Fetcher
	log  *zap.Logger
}

// NewMirrorFetcher builds a MirrorFetcher over the given transports.
// ftp may be nil when no ftp:// mirrors are expected.
func NewMirrorFetcher(httpFetcher, ftpFetcher Fetcher) *MirrorFetcher {
	return &MirrorFetcher{
		http: httpFetcher,
		ftp:  ftpFetcher,
		log:  zap.L().With(zap.String("component", "mirror_fetcher")),
	}
}

func (m *MirrorFetcher) transportFor(url string) Fetcher {
	if strings.HasPrefix(url, "ftp://") {
		return m.ftp
	}
	return m.http
}

// Fetch resolves res against mirrors in order, writing the decoded
// payload to res.CachePath. If the cache file already exists it is
// returned untouched without any network access. Returns the number of
// mirrors attempted.
func (m *MirrorFetcher) Fetch(ctx context.Context, res Resource, mirrors []Mirror) (int, error) {
	if st, err := os.Stat(res.CachePath); err == nil && st.Size() > 0 {
		m.log.Debug("cache hit, skipping download",
			zap.String("resource", res.Name),
			zap.String("path", res.CachePath),
		)
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(res.CachePath), 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetcher: create cache dir for %s", res.Name)
	}

	attempted := 0
	for _, mir := range mirrors {
		attempted++
		err := m.fetchOne(ctx, res, mir)
		if err == nil {
			m.log.Info("mirror fetch succeeded",
				zap.String("resource", res.Name),
				zap.String("url", mir.URL),
				zap.Int("attempt", attempted),
			)
			return attempted, nil
		}
		if ctx.Err() != nil {
			return attempted, eris.Wrapf(ctx.Err(), "fetcher: %s cancelled", res.Name)
		}
		m.log.Warn("mirror failed, advancing",
			zap.String("resource", res.Name),
			zap.String("url", mir.URL),
			zap.Error(err),
		)
	}

	return attempted, eris.Wrapf(ErrSourceUnavailable, "fetcher: %s: %d mirrors exhausted", res.Name, attempted)
}

// fetchOne downloads a single mirror, decodes its payload and moves it
// into place. The write goes through a temp file so a failed decode
// never poisons the cache.
func (m *MirrorFetcher) fetchOne(ctx context.Context, res Resource, mir Mirror) error {
	transport := m.transportFor(mir.URL)
	if transport == nil {
		return eris.Errorf("fetcher: no transport for %s", mir.URL)
	}

	body, err := transport.Download(ctx, mir.URL)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	tmp := res.CachePath + ".part"
	defer os.Remove(tmp) //nolint:errcheck

	var n int64
	switch mir.Compression {
	case CompressionGzip:
		n, err = writeGzipMember(body, tmp)
	case CompressionZip:
		n, err = writeZipEntry(body, tmp, res.Suffix)
	default:
		n, err = writeRaw(body, tmp)
	}
	if err != nil {
		return err
	}

	if n < res.MinSize {
		return eris.Errorf("fetcher: payload too small (%d < %d bytes)", n, res.MinSize)
	}

	if err := os.Rename(tmp, res.CachePath); err != nil {
		return eris.Wrap(err, "fetcher: move payload into cache")
	}
	return nil
}

func writeRaw(r io.Reader, path string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, r)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write payload")
	}
	return n, nil
}

func writeGzipMember(r io.Reader, path string) (int64, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: open gzip member")
	}
	defer gz.Close() //nolint:errcheck
	return writeRaw(gz, path)
}

// writeZipEntry buffers the archive to disk and extracts the first
// entry whose name ends with suffix. Zip needs random access, so no
// streaming here.
func writeZipEntry(r io.Reader, path, suffix string) (int64, error) {
	tmpZip := path + ".zip"
	if _, err := writeRaw(r, tmpZip); err != nil {
		return 0, err
	}
	defer os.Remove(tmpZip) //nolint:errcheck

	entry, err := ExtractZIPMatching(tmpZip, suffix, filepath.Dir(path))
	if err != nil {
		return 0, err
	}
	if entry != path {
		if err := os.Rename(entry, path); err != nil {
			return 0, eris.Wrap(err, "fetcher: rename zip entry")
		}
	}

	st, err := os.Stat(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: stat extracted entry")
	}
	return st.Size(), nil
}
