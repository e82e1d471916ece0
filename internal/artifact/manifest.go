package artifact

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidManifest is returned for a JSON manifest that fails schema validation.
var ErrInvalidManifest = errors.New("artifact: invalid manifest")

const manifestSchemaURL = "manifest-v1.schema.json"

//go:embed schema/manifest-v1.schema.json
var manifestSchemaJSON []byte

var manifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}
	return compiler.Compile(manifestSchemaURL)
})

// jsonManifest is the structured manifest form:
//
//	{"version": 1, "artifacts": ["ledger-1.2.0.0-linux-amd64", ...]}
type jsonManifest struct {
	Version   int      `json:"version"`
	Artifacts []string `json:"artifacts"`
}

// ParseManifest reads a release manifest. Paths ending in .json are decoded
// as a schema-checked JSON document; anything else is the newline-delimited
// list where blank lines and '#' comments are skipped. Entries containing
// path separators are dropped in both forms.
func ParseManifest(path string, r io.Reader) ([]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return parseJSONManifest(r)
	}
	return parseTextManifest(r)
}

func parseTextManifest(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = appendName(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func parseJSONManifest(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	schema, err := manifestSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var m jsonManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	var names []string
	for _, a := range m.Artifacts {
		names = appendName(names, strings.TrimSpace(a))
	}
	return names, nil
}

func appendName(names []string, name string) []string {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return names
	}
	return append(names, name)
}
