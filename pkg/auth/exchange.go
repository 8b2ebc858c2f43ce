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

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/decode-cloud/e2e/pkg/client"
)

// tokenResponse is returned by the token endpoint.
type tokenResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
}

// DirectExchange trades credentials for a token with the API itself.
type DirectExchange struct {
	api         *client.Client
	credentials Credentials
}

var _ Strategy = &DirectExchange{}

// NewDirectExchange returns a new direct exchange strategy.
func NewDirectExchange(api *client.Client, credentials Credentials) *DirectExchange {
	return &DirectExchange{
		api:         api,
		credentials: credentials,
	}
}

func (*DirectExchange) Name() string {
	return "direct"
}

func (s *DirectExchange) Token(ctx context.Context) (string, error) {
	return exchange(ctx, s.api, s.credentials)
}

func exchange(ctx context.Context, api *client.Client, credentials Credentials) (string, error) {
	form := url.Values{
		"username": []string{credentials.Email},
		"password": []string{credentials.Password},
	}

	resp, err := api.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        api.Endpoints().Token(),
		Body:        strings.NewReader(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
		Anonymous:   true,
	})
	if err != nil {
		return "", err
	}

	var token tokenResponse

	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return "", fmt.Errorf("unmarshaling token response: %w", err)
	}

	switch {
	case token.IDToken != "":
		return token.IDToken, nil
	case token.AccessToken != "":
		return token.AccessToken, nil
	}

	return "", fmt.Errorf("%w: token response carries no token", ErrAuthentication)
}

// registration is the self registration request.
type registration struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Groups   []string `json:"groups"`
}

// RegisterThenExchange creates the account, then performs a single direct
// exchange.  Registration is only idempotent if the API tolerates
// registering an existing account.
type RegisterThenExchange struct {
	api         *client.Client
	credentials Credentials
}

var _ Strategy = &RegisterThenExchange{}

// NewRegisterThenExchange returns a new registering strategy.
func NewRegisterThenExchange(api *client.Client, credentials Credentials) *RegisterThenExchange {
	return &RegisterThenExchange{
		api:         api,
		credentials: credentials,
	}
}

func (*RegisterThenExchange) Name() string {
	return "register"
}

func (s *RegisterThenExchange) Token(ctx context.Context) (string, error) {
	request := &registration{
		Email:    s.credentials.Email,
		Password: s.credentials.Password,
		Groups:   []string{DefaultGroup},
	}

	if err := s.api.DoJSON(ctx, http.MethodPost, s.api.Endpoints().User(), request, nil); err != nil {
		return "", fmt.Errorf("registering user: %w", err)
	}

	return exchange(ctx, s.api, s.credentials)
}
