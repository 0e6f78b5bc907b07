package rubric

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/competa/internal/domain/model"
)

//go:embed default_rubric.yaml
var defaultRubric []byte

// document is the on-disk shape of a rubric file.
type document struct {
	Nodes []model.CompetencyNode `koanf:"nodes"`
}

// Load reads a YAML rubric file.
func Load(path string) (*Rubric, error) {
	if path == "" {
		return nil, fmt.Errorf("empty rubric path: %w", ErrLoadRubric)
	}
	return load(file.Provider(path))
}

// Default returns the rubric bundled with the binary.
func Default() (*Rubric, error) {
	return load(bytesProvider(defaultRubric))
}

// Parse builds a rubric from YAML bytes.
func Parse(b []byte) (*Rubric, error) {
	return load(bytesProvider(b))
}

func load(p koanf.Provider) (*Rubric, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRubric, err)
	}
	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRubric, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes: %w", ErrLoadRubric)
	}
	return New(doc.Nodes)
}

// bytesProvider feeds an in-memory document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read")
}
