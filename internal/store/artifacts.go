package store

import "strings"

// sanitizeName keeps alphanumerics, '.', '-', '_' and replaces everything
// else with '_', per spec.md §4.6's artifact file-naming rule.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// artifactFileName builds the durable-mirror relative path
// "<workflow_id>/<artifact_id>_<sanitized_name>".
func artifactFileName(workflowExecutionID, artifactID, name string) string {
	return workflowExecutionID + "/" + artifactID + "_" + sanitizeName(name)
}
