// Package types defines the shared data model for the launcher core:
// plugin manifests, search result items, view session geometry and the
// structured operation results exchanged with the host shell.
package types
