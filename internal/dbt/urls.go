package dbt

import "strings"

// modelDocsURL links a model in the dbt docs site.
func modelDocsURL(base, uniqueID string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/#!/model/" + uniqueID
}

// metricDocsURL links a metric in the dbt docs site.
func metricDocsURL(base, uniqueID string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/#!/metric/" + uniqueID
}

// sourceCodeURL links a project file in the source repository.
func sourceCodeURL(projectURL, path string) string {
	if projectURL == "" || path == "" {
		return ""
	}
	return strings.TrimRight(projectURL, "/") + "/" + strings.TrimLeft(path, "/")
}
