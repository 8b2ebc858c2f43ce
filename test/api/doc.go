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

// Package api provides integration test utilities for the job API.
//
// # Separate Client Implementation
//
// The suites talk to the API through the hand written clients in pkg/
// rather than a generated one.  Any legitimate change to the API contract
// must have a compensating change in those clients, which makes API
// evolution explicit and reviewable.  The clients also carry test specific
// features:
//   - W3C trace context propagation for request correlation
//   - Detailed error logging with trace IDs for debugging
//   - Direct access to HTTP status codes and response bodies
//
// # Running
//
// Suites are behind the "integration" build tag and select their target
// with the same flags as the workflow-e2e binary:
//
//	go test -tags integration ./test/api/suites -args --local
//	go test -tags integration ./test/api/suites -args --dev --env-file ../../.env
package api
