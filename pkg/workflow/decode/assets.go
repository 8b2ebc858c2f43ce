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

package decode

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/decode-cloud/e2e/pkg/client"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// fetchArchive downloads a zip and extracts it into dir.
func fetchArchive(ctx context.Context, fetcher *client.Client, url, dir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating asset request: %w", err)
	}

	log.FromContext(ctx).Info("fetching example assets", "url", url)

	resp, err := fetcher.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("fetching example assets: %w", err)
	}

	return extract(resp.Body, dir)
}

func extract(archive []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("opening asset archive: %w", err)
	}

	for _, f := range reader.File {
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("asset archive entry %q escapes the extraction directory", f.Name)
		}

		target := filepath.Join(dir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}

			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}

	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	defer out.Close()

	//nolint:gosec // archive is a known, trusted asset bundle
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}

	return out.Close()
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening asset: %w", err)
	}

	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", source, err)
	}

	return out.Close()
}
