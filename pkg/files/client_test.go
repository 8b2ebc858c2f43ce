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

package files_test

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/testing/fakeapi"
)

var _ = Describe("Client", func() {
	var (
		server *fakeapi.Server
		store  *files.Client
	)

	BeforeEach(func() {
		var err error

		server, err = fakeapi.New(fakeapi.WithToken("test-token"), fakeapi.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(server.Close)

		api := client.New(client.Options{BaseURL: server.URL()})
		api.SetAuthToken("test-token")

		store = files.New(api)
	})

	Describe("Upload", func() {
		It("stores the file under its remote path", func(ctx SpecContext) {
			local := filepath.Join(GinkgoT().TempDir(), "param_run.yaml")
			Expect(os.WriteFile(local, []byte("HyperParameter: {}\n"), 0o600)).To(Succeed())

			Expect(store.Upload(ctx, "config/exp_1/param_run.yaml", local)).To(Succeed())

			content, ok := server.Object("config/exp_1/param_run.yaml")
			Expect(ok).To(BeTrue())
			Expect(string(content)).To(Equal("HyperParameter: {}\n"))
		})

		It("never sends API credentials to storage", func(ctx SpecContext) {
			Expect(store.UploadReader(ctx, "data/exp_1/frames.tif", "frames.tif", strings.NewReader("frames"))).To(Succeed())

			headers := server.StorageHeaders()
			Expect(headers).To(HaveLen(1))
			Expect(headers[0].Get("Authorization")).To(BeEmpty())
			Expect(headers[0].Get("Traceparent")).To(BeEmpty())
			Expect(headers[0].Get("X-Storage-Ticket")).NotTo(BeEmpty())
			Expect(headers[0].Get("Content-Type")).To(HavePrefix("multipart/form-data"))
		})

		It("fails when the local file is missing", func(ctx SpecContext) {
			err := store.Upload(ctx, "config/exp_1/missing.yaml", filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(MatchError(os.ErrNotExist))
			Expect(server.Paths()).To(BeEmpty())
		})
	})

	Describe("Download", func() {
		It("returns what was uploaded", func(ctx SpecContext) {
			Expect(store.UploadReader(ctx, "artifact/exp_1/model_0.pt", "model_0.pt", strings.NewReader("weights"))).To(Succeed())

			content, err := store.Download(ctx, "artifact/exp_1/model_0.pt")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("weights"))
		})

		It("reports missing files as not found", func(ctx SpecContext) {
			_, err := store.Download(ctx, "artifact/exp_1/missing.pt")
			Expect(client.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			server.PutObject("config/exp_1/param_run.yaml", []byte("a"))
			server.PutObject("data/exp_1/frames.tif", []byte("b"))
			server.PutObject("artifact/job_1/training/param_run_in.yaml", []byte("c"))
			server.PutObject("artifact/job_1/models/model_0.pt", []byte("d"))
		})

		It("lists everything recursively from the root", func(ctx SpecContext) {
			entries, err := store.List(ctx, "", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(files.Paths(entries)).To(ConsistOf(
				"config/exp_1/param_run.yaml",
				"data/exp_1/frames.tif",
				"artifact/job_1/training/param_run_in.yaml",
				"artifact/job_1/models/model_0.pt",
			))
		})

		It("lists only direct children when not recursive", func(ctx SpecContext) {
			entries, err := store.List(ctx, "artifact/job_1/", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(files.Paths(entries)).To(ConsistOf(
				"artifact/job_1/training/",
				"artifact/job_1/models/",
			))
		})

		It("reports an empty prefix as not found", func(ctx SpecContext) {
			_, err := store.List(ctx, "output/exp_1/", true)
			Expect(client.IsStatus(err, http.StatusNotFound)).To(BeTrue())
		})
	})

	Describe("Exists", func() {
		It("distinguishes present and absent paths", func(ctx SpecContext) {
			server.PutObject("config/exp_1/param_run.yaml", []byte("a"))

			exists, err := store.Exists(ctx, "config/exp_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = store.Exists(ctx, "config/exp_1/param_run.yaml")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = store.Exists(ctx, "config/exp_2")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("propagates other failures", func(ctx SpecContext) {
			api := client.New(client.Options{BaseURL: server.URL()})

			_, err := files.New(api).Exists(ctx, "config/exp_1")
			Expect(client.IsStatus(err, http.StatusUnauthorized)).To(BeTrue())
		})
	})
})
