// Package feeds fetches the DBLP XML dump and lists its monthly releases.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/miku/dblpkit"
	"github.com/miku/dblpkit/dateutil"
	"github.com/miku/dblpkit/xio"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "https://dblp.org/xml/"
	DefaultCacheTTL = 24 * time.Hour

	DumpFilename = "dblp.xml.gz"
	DTDFilename  = "dblp.dtd"
	// releasePath is the directory of dated releases, relative to the base URL.
	releasePath = "release/"
	// progressStep is the number of bytes between progress messages.
	progressStep = 100 << 20
)

var releasePattern = regexp.MustCompile(`^dblp-(\d{4}-\d{2}-\d{2})\.xml\.gz$`)

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Release is a dated snapshot of the dump, cf. https://dblp.org/xml/release/.
type Release struct {
	Filename string
	URL      string
	Date     time.Time
	Size     string
}

// DBLPFetcher downloads the current dump and its DTD into a directory.
type DBLPFetcher struct {
	BaseURL  string
	Dir      string
	Client   Doer
	CacheDir string
	CacheTTL time.Duration
	Log      logrus.FieldLogger
}

// NewDBLPFetcher creates a fetcher with a cache directory for the release
// listing. An empty dir defaults to the user data directory.
func NewDBLPFetcher(baseURL, dir string) (*DBLPFetcher, error) {
	cacheDir, err := xdg.CacheFile(filepath.Join(dblpkit.AppName, "releases"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, dblpkit.AppName)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DBLPFetcher{
		BaseURL:  baseURL,
		Dir:      dir,
		Client:   http.DefaultClient,
		CacheDir: cacheDir,
		CacheTTL: DefaultCacheTTL,
		Log:      logrus.StandardLogger(),
	}, nil
}

func (f *DBLPFetcher) url(name string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + "/" + name
}

func (f *DBLPFetcher) log() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}

// DumpPath returns the local path of the compressed dump.
func (f *DBLPFetcher) DumpPath() string {
	return filepath.Join(f.Dir, DumpFilename)
}

// DTDPath returns the local path of the DTD.
func (f *DBLPFetcher) DTDPath() string {
	return filepath.Join(f.Dir, DTDFilename)
}

// Download fetches the dump and the DTD, unless they exist already.
func (f *DBLPFetcher) Download(ctx context.Context) error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}
	for _, name := range []string{DumpFilename, DTDFilename} {
		if err := f.Fetch(ctx, f.url(name), filepath.Join(f.Dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Fetch downloads a URL to a file. Existing files are kept. The file only
// appears under its name once the download is complete.
func (f *DBLPFetcher) Fetch(ctx context.Context, link, dst string) error {
	if xio.Exists(dst) {
		f.log().WithField("file", dst).Debug("already downloaded")
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", dblpkit.AppName, dblpkit.Version))
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: %s", link, resp.Status)
	}
	wip := dst + xio.WipSuffix
	file, err := os.Create(wip)
	if err != nil {
		return err
	}
	pw := &progressWriter{
		log:  f.log().WithField("url", link),
		size: resp.ContentLength,
		next: progressStep,
	}
	f.log().WithFields(logrus.Fields{
		"url":  link,
		"size": humanize.Bytes(uint64(max(resp.ContentLength, 0))),
	}).Info("downloading")
	if _, err := io.Copy(file, io.TeeReader(resp.Body, pw)); err != nil {
		file.Close()
		os.Remove(wip)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(wip)
		return err
	}
	return os.Rename(wip, dst)
}

// progressWriter logs the number of bytes seen.
type progressWriter struct {
	log   logrus.FieldLogger
	size  int64
	total int64
	next  int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.total += int64(len(p))
	if w.total >= w.next {
		if w.size > 0 {
			w.log.Infof("%s / %s", humanize.Bytes(uint64(w.total)), humanize.Bytes(uint64(w.size)))
		} else {
			w.log.Infof("%s", humanize.Bytes(uint64(w.total)))
		}
		w.next += progressStep
	}
	return len(p), nil
}

// cachedListing returns the cached release listing, if it is recent enough.
func (f *DBLPFetcher) cachedListing() ([]byte, error) {
	if f.CacheDir == "" {
		return nil, nil
	}
	cacheFile := filepath.Join(f.CacheDir, "index.html")
	info, err := os.Stat(cacheFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Since(info.ModTime()) > f.CacheTTL {
		return nil, nil
	}
	return os.ReadFile(cacheFile)
}

func (f *DBLPFetcher) fetchListing(ctx context.Context) ([]byte, error) {
	b, err := f.cachedListing()
	if err != nil || b != nil {
		return b, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(releasePath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch release listing: %s", resp.Status)
	}
	if b, err = io.ReadAll(resp.Body); err != nil {
		return nil, err
	}
	if f.CacheDir != "" {
		if err := os.WriteFile(filepath.Join(f.CacheDir, "index.html"), b, 0644); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Releases lists the dated releases, oldest first.
func (f *DBLPFetcher) Releases(ctx context.Context) ([]Release, error) {
	b, err := f.fetchListing(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	if err != nil {
		return nil, err
	}
	var releases []Release
	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = filepath.Base(href)
		m := releasePattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		date, err := dateutil.Parse(m[1])
		if err != nil {
			return
		}
		r := Release{
			Filename: href,
			URL:      f.url(releasePath + href),
			Date:     date,
		}
		// Directory listings carry date and size after the link.
		parts := strings.Fields(s.Parent().Text())
		for j, part := range parts {
			if part == href && j+3 < len(parts) {
				r.Size = parts[j+3]
				break
			}
		}
		releases = append(releases, r)
	})
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].Date.Before(releases[j].Date)
	})
	return releases, nil
}

// LatestRelease returns the most recent release.
func LatestRelease(releases []Release) (Release, bool) {
	if len(releases) == 0 {
		return Release{}, false
	}
	return releases[len(releases)-1], true
}

// Decompress writes the uncompressed content of a gzip file to dst.
func Decompress(src, dst string) error {
	if xio.Exists(dst) {
		return nil
	}
	r, err := xio.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := xio.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}
