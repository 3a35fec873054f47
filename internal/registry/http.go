package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jsdeps/jsdeps/internal/depserr"
	"github.com/jsdeps/jsdeps/internal/obslog"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/semrange"
)

var log = obslog.New("registry")

// packument is the npm-style "GET /{name}" response: one document per
// package listing every published version.
type packument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]versionMetadata `json:"versions"`
}

type versionMetadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Dist         struct {
		Tarball   string `json:"tarball"`
		Integrity string `json:"integrity"`
	} `json:"dist"`
}

func (v versionMetadata) toManifest() Manifest {
	m := Manifest{
		Name:       pkgid.Name(v.Name),
		Version:    pkgid.Version(v.Version),
		TarballURL: v.Dist.Tarball,
		Integrity:  v.Dist.Integrity,
	}

	names := make([]string, 0, len(v.Dependencies))
	for n := range v.Dependencies {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, n := range names {
		m.Dependencies = append(m.Dependencies, pkgid.Dependency{Name: pkgid.Name(n), Range: v.Dependencies[n]})
	}

	return m
}

// HTTPClient is a Registry Client that talks to a real npm-shaped HTTP
// registry. Grounded on internal/packagemanager/httpregistry.go: a
// tuned transport, 3-attempt exponential backoff, and singleflight
// coalescing of duplicate concurrent lookups.
type HTTPClient struct {
	base   string
	client *http.Client
	token  string
	sf     singleflight.Group
}

// NewHTTPClient constructs a client against baseURL. It reads
// JSDEPS_REGISTRY_TOKEN as a Bearer token if set, mirroring the
// teacher's ORIZON_REGISTRY_TOKEN convention.
func NewHTTPClient(baseURL string) *HTTPClient {
	return NewHTTPClientWithAuth(baseURL, strings.TrimSpace(os.Getenv("JSDEPS_REGISTRY_TOKEN")))
}

// NewHTTPClientWithAuth constructs a client with an explicit Bearer token.
func NewHTTPClientWithAuth(baseURL, token string) *HTTPClient {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Transport: tr, Timeout: 60 * time.Second},
		token:  strings.TrimSpace(token),
	}
}

func (c *HTTPClient) doWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
		}

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", depserr.ErrRegistryUnavailable, lastErr)
}

func (c *HTTPClient) fetchPackument(ctx context.Context, name pkgid.Name) (packument, error) {
	v, err, _ := c.sf.Do("packument:"+string(name), func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+string(name), http.NoBody)
		if err != nil {
			return nil, err
		}

		resp, err := c.doWithRetry(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", depserr.ErrPackageNotFound, name)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)

			return nil, fmt.Errorf("%w: %s: status %d: %s", depserr.ErrRegistryUnavailable, name, resp.StatusCode, body)
		}

		var p packument
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: decoding packument for %s: %v", depserr.ErrRegistryUnavailable, name, err)
		}

		return p, nil
	})
	if err != nil {
		return packument{}, err
	}

	return v.(packument), nil
}

// ListVersions implements Client.
func (c *HTTPClient) ListVersions(ctx context.Context, name pkgid.Name) ([]pkgid.Version, error) {
	p, err := c.fetchPackument(ctx, name)
	if err != nil {
		return nil, err
	}

	out := make([]pkgid.Version, 0, len(p.Versions))
	for v := range p.Versions {
		out = append(out, pkgid.Version(v))
	}

	semrange.SortAscending(out)

	return out, nil
}

// FetchMetadata implements Client. version may be "latest".
func (c *HTTPClient) FetchMetadata(ctx context.Context, name pkgid.Name, version pkgid.Version) (Manifest, error) {
	p, err := c.fetchPackument(ctx, name)
	if err != nil {
		return Manifest{}, err
	}

	resolved := string(version)
	if resolved == "latest" || resolved == "" {
		if tag, ok := p.DistTags["latest"]; ok {
			resolved = tag
		}
	}

	vm, ok := p.Versions[resolved]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %s@%s", depserr.ErrVersionNotFound, name, version)
	}

	return vm.toManifest(), nil
}

// DownloadTarball implements Client: fetches the manifest to learn the
// tarball URL, downloads it, verifies integrity if supplied, and
// extracts it into targetDir.
func (c *HTTPClient) DownloadTarball(ctx context.Context, name pkgid.Name, version pkgid.Version, targetDir string) error {
	mf, err := c.FetchMetadata(ctx, name, version)
	if err != nil {
		return err
	}

	if mf.TarballURL == "" {
		return fmt.Errorf("%w: %s@%s: no tarball url", depserr.ErrDownloadFailed, name, version)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mf.TarballURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %v", depserr.ErrDownloadFailed, err)
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("%w: %v", depserr.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s@%s: status %d", depserr.ErrDownloadFailed, name, version, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading tarball for %s@%s: %v", depserr.ErrDownloadFailed, name, version, err)
	}

	if mf.Integrity != "" {
		if err := verifyIntegrity(data, mf.Integrity); err != nil {
			return err
		}
	}

	if err := extractTarGz(data, targetDir); err != nil {
		return fmt.Errorf("%w: %s@%s: %v", depserr.ErrExtractionFailed, name, version, err)
	}

	log.Infof("downloaded %s@%s (%d bytes)", name, version, len(data))

	return nil
}

// verifyIntegrity checks a "sha256-<hex>" style integrity string against
// the downloaded bytes.
func verifyIntegrity(data []byte, integrity string) error {
	parts := strings.SplitN(integrity, "-", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		// Unknown digest algorithm: nothing to verify against.
		return nil
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != parts[1] {
		return fmt.Errorf("%w: expected %s, got %s", depserr.ErrIntegrityMismatch, parts[1], hex.EncodeToString(sum[:]))
	}

	return nil
}

// extractTarGz extracts a gzip-compressed tar archive into dir, which is
// created if missing. Paths are sanitized against traversal outside dir.
func extractTarGz(data []byte, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		name := stripArchiveRoot(hdr.Name)
		if name == "" {
			continue
		}

		target := filepath.Join(dir, name)
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
			return fmt.Errorf("tarball entry escapes target directory: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}

			if _, err := io.Copy(f, tr); err != nil {
				f.Close()

				return err
			}

			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

// stripArchiveRoot drops the leading "package/" (or any single
// top-level) directory component most tarball generators add, so
// targetDir ends up holding the package contents directly.
func stripArchiveRoot(name string) string {
	name = strings.TrimPrefix(name, "./")

	parts := strings.SplitN(name, "/", 2)
	if len(parts) == 2 {
		return parts[1]
	}

	return ""
}
