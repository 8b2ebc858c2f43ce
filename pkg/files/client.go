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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/decode-cloud/e2e/pkg/client"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// FileField is the multipart field uploads carry the content in.
const FileField = "file"

// Client transfers files through descriptors issued by the API.
type Client struct {
	api *client.Client
}

// New returns a file transfer client sharing the API client's credential.
func New(api *client.Client) *Client {
	return &Client{
		api: api,
	}
}

// Descriptor asks the API how to transfer remotePath.  Uploads use POST,
// downloads use GET.
func (c *Client) Descriptor(ctx context.Context, method, remotePath string) (*Descriptor, error) {
	resp, err := c.api.Do(ctx, client.Request{
		Method: method,
		Path:   c.api.Endpoints().FileURL(remotePath),
	})
	if err != nil {
		return nil, fmt.Errorf("requesting transfer descriptor for %s: %w", remotePath, err)
	}

	descriptor, err := ParseDescriptor(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transfer descriptor for %s: %w", remotePath, err)
	}

	return descriptor, nil
}

// Upload uploads a local file to remotePath.
func (c *Client) Upload(ctx context.Context, remotePath, localFile string) error {
	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localFile, err)
	}

	defer f.Close()

	return c.UploadReader(ctx, remotePath, filepath.Base(localFile), f)
}

// UploadReader uploads content as a file called name to remotePath.
func (c *Client) UploadReader(ctx context.Context, remotePath, name string, content io.Reader) error {
	descriptor, err := c.Descriptor(ctx, http.MethodPost, remotePath)
	if err != nil {
		return err
	}

	body, contentType, err := multipartBody(descriptor.Data, name, content)
	if err != nil {
		return err
	}

	req, err := descriptor.NewRequest(ctx, body, contentType)
	if err != nil {
		return err
	}

	log.FromContext(ctx).V(1).Info("uploading file", "remotePath", remotePath, "name", name, "size", body.Len())

	if _, err := c.api.Send(ctx, req); err != nil {
		return fmt.Errorf("uploading %s: %w", remotePath, err)
	}

	return nil
}

// multipartBody encodes descriptor form fields, in key order, followed by
// the file part.
func multipartBody(fields map[string]string, name string, content io.Reader) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(fields))

	for k := range fields {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		if err := writer.WriteField(k, fields[k]); err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", k, err)
		}
	}

	part, err := writer.CreateFormFile(FileField, name)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}

	if _, err := io.Copy(part, content); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// Download returns the content stored at remotePath.
func (c *Client) Download(ctx context.Context, remotePath string) ([]byte, error) {
	descriptor, err := c.Descriptor(ctx, http.MethodGet, remotePath)
	if err != nil {
		return nil, err
	}

	req, err := descriptor.NewRequest(ctx, nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", remotePath, err)
	}

	return resp.Body, nil
}

// List returns the files under prefix.  An empty prefix lists everything.
func (c *Client) List(ctx context.Context, prefix string, recursive bool) ([]Entry, error) {
	resp, err := c.api.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   c.api.Endpoints().Files(prefix),
		Query:  url.Values{"recursive": []string{strconv.FormatBool(recursive)}},
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}

	var entries []Entry

	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("decoding listing of %q: %w", prefix, err)
	}

	return entries, nil
}

// Exists reports whether anything is stored at remotePath.
func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := c.api.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   c.api.Endpoints().Files(remotePath),
	})
	if err != nil {
		if client.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("probing %s: %w", remotePath, err)
	}

	return true, nil
}
