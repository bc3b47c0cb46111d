package output

import (
	"encoding/json"

	"github.com/pkgmeta/repometa/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatResult renders an analysis result as JSON.
func (f *JSONFormatter) FormatResult(result *core.AnalysisResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

// FormatRepositories renders repositories as a JSON array.
func (f *JSONFormatter) FormatRepositories(repos []core.Repository) (string, error) {
	if repos == nil {
		repos = []core.Repository{}
	}
	return f.marshal(repos)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
