package docs

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Chunk is the atomic retrievable unit: a bounded text segment plus
// provenance and classification metadata. Chunks are produced transiently
// by the Processor and handed off to the index, which owns them afterward.
type Chunk struct {
	Text string
	Meta map[string]any
}

// Classification describes a document's static type/category/topics mapping.
type Classification struct {
	Type     string
	Category string
	Topics   string
}

// docTypeMapping classifies the known corpus files by exact filename.
// Unrecognized filenames fall back to defaultClassification.
var docTypeMapping = map[string]Classification{
	"salesforce_apex_developer_guide.pdf": {
		Type:     "development",
		Category: "core_programming",
		Topics:   "apex,triggers,classes,governor_limits",
	},
	"salesforce_security_impl_guide.pdf": {
		Type:     "security",
		Category: "implementation",
		Topics:   "authentication,authorization,data_security",
	},
	"integration_patterns_and_practices.pdf": {
		Type:     "integration",
		Category: "architecture",
		Topics:   "apis,patterns,enterprise_integration",
	},
	"sfdx_dev.pdf": {
		Type:     "devops",
		Category: "development_lifecycle",
		Topics:   "sfdx,deployment,version_control",
	},
	"salesforce_soql_sosl.pdf": {
		Type:     "data",
		Category: "querying",
		Topics:   "soql,sosl,query_optimization",
	},
	"api_meta.pdf": {
		Type:     "api",
		Category: "deployment",
		Topics:   "metadata,deployment,automation",
	},
	"api_rest.pdf": {
		Type:     "api",
		Category: "integration",
		Topics:   "rest,api_design,integration",
	},
	"salesforce_app_limits_cheatsheet.pdf": {
		Type:     "performance",
		Category: "best_practices",
		Topics:   "governor_limits,performance,optimization",
	},
	"platform_events.pdf": {
		Type:     "development",
		Category: "core_programming",
		Topics:   "apex,triggers,classes,governor_limits,performance,optimization",
	},
}

var defaultClassification = Classification{
	Type:     "general",
	Category: "unknown",
	Topics:   "general",
}

// Classify returns the static classification for a corpus filename.
func Classify(filename string) Classification {
	if c, ok := docTypeMapping[filename]; ok {
		return c
	}
	return defaultClassification
}

// ChunkID derives the stable 8-character chunk identifier from the source
// filename and 1-based page number. All chunks split from the same page
// share the same chunk_id; callers needing a unique key must additionally
// incorporate chunk_index.
func ChunkID(filename string, pageNumber int) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s_%d", filename, pageNumber))
	return hex.EncodeToString(sum[:])[:8]
}

// FlattenMetadata restricts metadata values to scalar types, the hard
// constraint of the vector store backend. Slices become comma-joined
// strings, maps become JSON strings, anything else is stringified.
// No keys are ever dropped.
func FlattenMetadata(meta map[string]any) map[string]any {
	flat := make(map[string]any, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			flat[k] = val
		case []string:
			flat[k] = joinStrings(val)
		case []any:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			flat[k] = joinStrings(parts)
		case map[string]any:
			b, err := json.Marshal(val)
			if err != nil {
				flat[k] = fmt.Sprint(val)
				continue
			}
			flat[k] = string(b)
		default:
			flat[k] = fmt.Sprint(val)
		}
	}
	return flat
}

func joinStrings(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
