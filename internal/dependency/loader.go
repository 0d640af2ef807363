package dependency

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"gopkg.in/yaml.v3"

	"github.com/ucsindex/engine/internal/domain"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

type registryFile struct {
	Version string                   `yaml:"version"`
	Assets  []domain.AssetDependency `yaml:"assets"`
}

// Parse decodes a YAML registry description and validates it.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if f.Version == "" {
		return nil, &domain.ConfigurationError{Reason: "registry version is required"}
	}
	if len(f.Assets) == 0 {
		return nil, &domain.ConfigurationError{Reason: "registry has no assets"}
	}
	return NewRegistry(f.Version, f.Assets)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultRegistryYAML)
}

// Load resolves a registry source: empty for the embedded default, gs://bucket/object[#generation]
// for a versioned Cloud Storage object, anything else is a local file path.
func Load(ctx context.Context, source string) (*Registry, error) {
	switch {
	case source == "":
		return Default()
	case strings.HasPrefix(source, "gs://"):
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		defer client.Close()
		return LoadGCS(ctx, client, source)
	default:
		return LoadFile(source)
	}
}

// LoadFile reads a registry from a local YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return Parse(data)
}

// LoadGCS reads a registry from Cloud Storage. The object generation that was read is
// appended to the registry version so every recalculation can be traced to an exact config.
func LoadGCS(ctx context.Context, client *storage.Client, uri string) (*Registry, error) {
	bucket, object, generation, err := parseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	obj := client.Bucket(bucket).Object(object)
	if generation > 0 {
		obj = obj.Generation(generation)
	}

	rd, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	reg.version = fmt.Sprintf("%s@gs:%d", reg.version, rd.Attrs.Generation)
	return reg, nil
}

func parseGCSURI(uri string) (bucket, object string, generation int64, err error) {
	rest := strings.TrimPrefix(uri, "gs://")
	if i := strings.LastIndex(rest, "#"); i >= 0 {
		generation, err = strconv.ParseInt(rest[i+1:], 10, 64)
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid generation in %q: %w", uri, err)
		}
		rest = rest[:i]
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", 0, fmt.Errorf("invalid registry uri %q, expected gs://bucket/object", uri)
	}
	return bucket, object, generation, nil
}
