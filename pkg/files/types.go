/*
Copyright 2026 the DECODE Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package files

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind is the remote namespace a file belongs to.  Kinds are disjoint.
type Kind string

const (
	KindConfig   Kind = "config"
	KindData     Kind = "data"
	KindArtifact Kind = "artifact"
	KindOutput   Kind = "output"
	KindLog      Kind = "log"
)

// Kinds returns every file kind.
func Kinds() []Kind {
	return []Kind{KindConfig, KindData, KindArtifact, KindOutput, KindLog}
}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}

	return false
}

// ApplicationFile is a local input file and the namespace it is uploaded to.
type ApplicationFile struct {
	Kind Kind
	Path string
}

// RemotePath is where the file lives remotely for an experiment.
func (f ApplicationFile) RemotePath(experimentID string) string {
	return RemotePath(f.Kind, experimentID, filepath.Base(f.Path))
}

// Prefix returns the directory that holds all files of a kind for an experiment.
func Prefix(kind Kind, experimentID string) string {
	return string(kind) + "/" + experimentID + "/"
}

// RemotePath returns kind/experimentID/relative.
func RemotePath(kind Kind, experimentID, relative string) string {
	return path.Join(string(kind), experimentID, strings.TrimPrefix(filepath.ToSlash(relative), "/"))
}

// Entry is a single listed file.
type Entry struct {
	Path string `json:"path"`
}

// Paths returns the paths of the entries.
func Paths(entries []Entry) []string {
	paths := make([]string, len(entries))

	for i := range entries {
		paths[i] = entries[i].Path
	}

	return paths
}
