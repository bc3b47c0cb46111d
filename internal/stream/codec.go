// Package stream connects the message processor to Kafka topics.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/processor"
)

const (
	componentTopic = "dtrack.repo-meta-analysis.component"
	resultTopic    = "dtrack.repo-meta-analysis.result"
)

// Topics names the input and output topics.
type Topics struct {
	Component string
	Result    string
}

// TopicNames applies prefix to the default topic names.
func TopicNames(prefix string) Topics {
	prefix = strings.TrimSpace(prefix)
	return Topics{
		Component: prefix + componentTopic,
		Result:    prefix + resultTopic,
	}
}

// DecodeCommand parses a command record. The record key is used as the purl
// when the payload omits it.
func DecodeCommand(key, value []byte) (core.AnalysisCommand, error) {
	var cmd core.AnalysisCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		return core.AnalysisCommand{}, fmt.Errorf("%w: decode command: %w", processor.ErrMalformedInput, err)
	}
	if strings.TrimSpace(cmd.Component.PURL) == "" {
		cmd.Component.PURL = strings.TrimSpace(string(key))
	}
	if cmd.Component.PURL == "" {
		return core.AnalysisCommand{}, fmt.Errorf("%w: command has no purl", processor.ErrMalformedInput)
	}
	return cmd, nil
}

// EncodeResult serializes a result keyed by its coordinates.
func EncodeResult(key core.ResultKey, result core.AnalysisResult) ([]byte, []byte, error) {
	value, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return []byte(key.String()), value, nil
}
