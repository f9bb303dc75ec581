// Package fetch retrieves release artifacts from an update repository,
// which is either a directory on disk or an HTTP file server.
//
// Sources distinguish an artifact that does not exist (ErrNotFound)
// from a repository that cannot be reached, because callers react
// differently: a missing patch falls back to a full download, while a
// missing full archive is a hard failure.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	pb "github.com/schollz/progressbar/v3"
)

// ErrNotFound is returned when the repository is reachable but has no
// artifact with the requested name.
var ErrNotFound = errors.New("artifact not found")

// Source retrieves named artifacts from an update repository.
type Source interface {
	Fetch(name string) ([]byte, error)
}

// New returns a source for the given repository location: an HTTP
// source for http:// and https:// URLs, a directory source otherwise.
func New(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location)
	}
	return NewDirSource(location)
}

// DirSource reads artifacts from a local directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a source reading from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Fetch reads the named artifact from the directory.
func (s *DirSource) Fetch(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// HTTPSource downloads artifacts from an HTTP file server.
type HTTPSource struct {
	baseURL  string
	client   *http.Client
	progress io.Writer
}

// NewHTTPSource creates a source downloading from baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// WithProgress renders a progress bar to w while downloading.
func (s *HTTPSource) WithProgress(w io.Writer) *HTTPSource {
	s.progress = w
	return s
}

// Fetch downloads the named artifact. A 404 maps to ErrNotFound; any
// other non-200 status and any transport failure are reported as
// network errors.
func (s *HTTPSource) Fetch(name string) ([]byte, error) {
	url := s.baseURL + "/" + name

	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s returned status %d", name, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if s.progress != nil {
		bar := newBar(s.progress, resp.ContentLength, name)
		defer bar.Close()
		body = io.TeeReader(resp.Body, bar)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	return data, nil
}

func newBar(w io.Writer, total int64, desc string) *pb.ProgressBar {
	return pb.NewOptions64(
		total,
		pb.OptionSetDescription(desc),
		pb.OptionSetWriter(w),
		pb.OptionSetWidth(20),
		pb.OptionThrottle(65*time.Millisecond),
		pb.OptionShowBytes(true),
		pb.OptionSetTheme(
			pb.Theme{Saucer: "=", SaucerPadding: " ", BarStart: "[", BarEnd: "]"},
		),
		pb.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		pb.OptionSpinnerType(14),
		pb.OptionFullWidth(),
	)
}
