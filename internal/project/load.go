package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/argmaster/cssfinder/internal/model"
)

// Project file names probed when Load is given a directory.
var projectFileNames = []string{"cssfproject.json", "cssfproject.yaml", "cssfproject.yml"}

// document is the raw on-disk shape of a static project description, after
// reference expansion.
type document struct {
	Meta  Meta               `json:"meta"`
	Tasks map[string]taskDoc `json:"tasks"`
}

type taskDoc struct {
	Mode      string        `json:"mode"`
	Backend   *backendDoc   `json:"backend"`
	State     stateDoc      `json:"state"`
	Runtime   *runtimeDoc   `json:"runtime"`
	Resources *resourcesDoc `json:"resources"`
	Output    string        `json:"output"`
}

type backendDoc struct {
	Name      string `json:"name"`
	Precision string `json:"precision"`
}

// stateDoc accepts either a bare file path or an object with dimension
// metadata.
type stateDoc struct {
	File     string `json:"file"`
	Depth    int    `json:"depth"`
	Quantity int    `json:"quantity"`
}

func (s *stateDoc) UnmarshalJSON(data []byte) error {
	var file string
	if err := json.Unmarshal(data, &file); err == nil {
		s.File = file
		return nil
	}
	type plain stateDoc
	return json.Unmarshal(data, (*plain)(s))
}

type runtimeDoc struct {
	Visibility    float64 `json:"visibility"`
	MaxIterations int     `json:"max_iterations"`
	Threshold     float64 `json:"threshold"`
}

type resourcesDoc struct {
	Symmetries [][]string `json:"symmetries"`
	Projection string     `json:"projection"`
}

// Load reads a project description from a directory containing a project
// file, or from the file itself. JSON and YAML forms share one schema and
// converge to the same Project shape. All failures are reported as
// *ParseError; reference cycles additionally match *CycleError via
// errors.As.
func Load(path string) (*Project, error) {
	p, err := load(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return p, nil
}

func load(path string) (*Project, error) {
	file, err := locateProjectFile(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var tree any
	switch filepath.Ext(file) {
	case ".json":
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yamlv3.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown project file format %q", filepath.Ext(file))
	}

	expanded, err := resolveRefs(tree)
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(expanded)
	if err != nil {
		return nil, err
	}
	return fromDocument(filepath.Dir(file), doc)
}

// locateProjectFile maps a directory-or-file argument to the project file.
func locateProjectFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range projectFileNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no project file (%v) in %s", projectFileNames, path)
}

// decodeDocument converts the expanded tree into the typed document. Going
// through JSON normalizes the YAML and JSON forms onto one code path.
func decodeDocument(tree any) (*document, error) {
	buf, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// fromDocument maps the raw document onto TaskSpecs and assembles the
// Project through the same path the dynamic Builder uses.
func fromDocument(dir string, doc *document) (*Project, error) {
	specs := make(map[string]TaskSpec, len(doc.Tasks))
	for name, td := range doc.Tasks {
		spec, err := specFromDoc(td)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		specs[name] = spec
	}
	return assemble(dir, doc.Meta, specs)
}

func specFromDoc(td taskDoc) (TaskSpec, error) {
	mode, err := model.ParseMode(td.Mode)
	if err != nil {
		return TaskSpec{}, err
	}

	spec := TaskSpec{
		Mode:      mode,
		StateFile: td.State.File,
		Depth:     td.State.Depth,
		Quantity:  td.State.Quantity,
		Output:    td.Output,
	}

	if td.Backend != nil {
		spec.BackendName = td.Backend.Name
		if td.Backend.Precision != "" {
			precision, err := model.ParsePrecision(td.Backend.Precision)
			if err != nil {
				return TaskSpec{}, err
			}
			spec.Precision = precision
		}
	}

	if td.Runtime == nil {
		return TaskSpec{}, fmt.Errorf("missing runtime section")
	}
	spec.Visibility = td.Runtime.Visibility
	spec.MaxIterations = td.Runtime.MaxIterations
	spec.Threshold = td.Runtime.Threshold

	if td.Resources != nil {
		spec.Symmetries = td.Resources.Symmetries
		spec.Projection = td.Resources.Projection
	}
	return spec, nil
}
