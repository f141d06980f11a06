package filesystem

import "strings"

// ResolveLocalPath converts a document URI to a path suitable for opening
// with local tooling. Handles file:// URIs and bare paths.
func ResolveLocalPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}
