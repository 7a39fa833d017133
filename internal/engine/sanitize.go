package engine

import (
	"path/filepath"
	"strings"

	"dataforge/internal/domain"
)

// Extensions recognized as loadable data files, mapped to engine formats.
var formatByExt = map[string]string{
	".csv":     domain.FormatCSV,
	".tsv":     domain.FormatCSV,
	".json":    domain.FormatJSON,
	".ndjson":  domain.FormatJSON,
	".jsonl":   domain.FormatJSON,
	".parquet": domain.FormatParquet,
	".xlsx":    domain.FormatExcel,
	".xls":     domain.FormatExcel,
}

// FormatFromFilename infers the load format from a filename extension.
func FormatFromFilename(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := formatByExt[ext]; ok {
		return f, nil
	}
	return "", domain.ErrValidation("unsupported file format %q (want csv, json, parquet, or xlsx)", ext)
}

// SanitizeTableName derives a valid table identifier from a filename:
// the directory and any recognized data extension are stripped, characters
// outside [A-Za-z0-9_] become underscores, and a leading digit is prefixed.
// The result is never empty and the function is idempotent.
func SanitizeTableName(name string) string {
	base := filepath.Base(name)

	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if _, ok := formatByExt[ext]; ok {
			base = base[:len(base)-len(ext)]
		}
	}

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" || allUnderscores(out) {
		return "unnamed"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return out
}

func allUnderscores(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			return false
		}
	}
	return true
}
