package output

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkgmeta/repometa/internal/core"
)

const placeholder = "-"

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

func statusLabel(result *core.AnalysisResult) string {
	if result.LatestVersion == "" && result.IntegrityMeta.IsEmpty() {
		return "no data"
	}
	return "resolved"
}

func publishedLabel(ts *time.Time) string {
	if ts == nil {
		return placeholder
	}
	return ts.UTC().Format(time.RFC3339)
}

// checksumLabels lists the populated checksums as "algo:value".
func checksumLabels(meta *core.IntegrityMeta) []string {
	if meta.IsEmpty() {
		return nil
	}
	values := map[string]string{
		"md5":    meta.MD5,
		"sha1":   meta.SHA1,
		"sha256": meta.SHA256,
		"sha512": meta.SHA512,
	}
	labels := make([]string, 0, len(values))
	for algo, value := range values {
		if value != "" {
			labels = append(labels, algo+":"+value)
		}
	}
	sort.Strings(labels)
	return labels
}

func integritySource(meta *core.IntegrityMeta) string {
	if meta == nil {
		return placeholder
	}
	return orPlaceholder(meta.MetaSourceURL)
}

func repositoryFlags(repo core.Repository) string {
	flags := make([]string, 0, 3)
	if !repo.Enabled {
		flags = append(flags, "disabled")
	}
	if repo.Internal {
		flags = append(flags, "internal")
	}
	if repo.AuthenticationRequired {
		flags = append(flags, "auth")
	}
	if len(flags) == 0 {
		return placeholder
	}
	return strings.Join(flags, ",")
}

func orderLabel(order int) string {
	return strconv.Itoa(order)
}
