package faceapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type WeightSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

type ManifestGroup struct {
	Weights []WeightSpec `json:"weights"`
	Paths   []string     `json:"paths"`
}

type Manifest struct {
	Model  string
	URL    string
	Groups []ManifestGroup
}

func (m Manifest) WeightCount() int {
	n := 0
	for _, g := range m.Groups {
		n += len(g.Weights)
	}
	return n
}

func fetchManifest(url string, timeout time.Duration) ([]ManifestGroup, error) {
	code, body, errs := fiber.Get(url).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("fetching %s: %w", url, errs[0])
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, code)
	}

	var groups []ManifestGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	if len(groups) == 0 || len(groups[0].Paths) == 0 {
		return nil, fmt.Errorf("manifest %s lists no weight files", url)
	}

	return groups, nil
}

// fetchManifests loads every model manifest in parallel. All must succeed.
func fetchManifests(ctx context.Context, baseURL string, models []string, timeout time.Duration) (map[string]Manifest, error) {
	type result struct {
		manifest Manifest
		err      error
	}

	results := make(chan result, len(models))
	var wg sync.WaitGroup
	for _, model := range models {
		wg.Add(1)
		go func(model string) {
			defer wg.Done()
			url := ManifestURL(baseURL, model)
			groups, err := fetchManifest(url, timeout)
			results <- result{
				manifest: Manifest{Model: model, URL: url, Groups: groups},
				err:      err,
			}
		}(model)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	close(results)

	manifests := make(map[string]Manifest, len(models))
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, r.err)
		}
		manifests[r.manifest.Model] = r.manifest
	}

	return manifests, nil
}
