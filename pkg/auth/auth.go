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
	"errors"
	"fmt"
	"strings"

	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/environment"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrAuthentication is raised when no bearer token could be obtained.
	ErrAuthentication = errors.New("authentication failed")
)

// DefaultGroup is the group self registered accounts join.
const DefaultGroup = "users"

// Credentials identify an account.
type Credentials struct {
	Email    string
	Password string
}

// Strategy obtains a bearer token.
type Strategy interface {
	// Name is used in logs and errors.
	Name() string
	// Token returns a bearer token.
	Token(ctx context.Context) (string, error)
}

// Static is a pre-issued token.
type Static string

var _ Strategy = Static("")

func (Static) Name() string {
	return "static"
}

func (s Static) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthentication)
	}

	return string(s), nil
}

// Chain tries strategies in order, each at most once.  An HTTP rejection
// falls through to the next strategy, anything else is terminal.
type Chain []Strategy

var _ Strategy = Chain{}

func (c Chain) Name() string {
	names := make([]string, len(c))

	for i, s := range c {
		names[i] = s.Name()
	}

	return strings.Join(names, ",")
}

func (c Chain) Token(ctx context.Context) (string, error) {
	log := log.FromContext(ctx)

	errs := make([]error, 0, len(c))

	for _, s := range c {
		token, err := s.Token(ctx)
		if err == nil {
			return token, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))

		var httpErr *client.HTTPError
		if !errors.As(err, &httpErr) {
			break
		}

		log.Info("authentication strategy rejected, falling back", "strategy", s.Name(), "status", httpErr.StatusCode)
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no strategies configured", ErrAuthentication)
	}

	return "", fmt.Errorf("%w: %w", ErrAuthentication, errors.Join(errs...))
}

// Selection describes what ForEnvironment needs to pick a strategy.
type Selection struct {
	// AccessToken is a pre-issued token that bypasses authentication.
	AccessToken string
	// Credentials of the account.
	Credentials Credentials
	// IdentityProviders builds external identity provider clients.
	IdentityProviders IdentityProviderFactory
}

// ForEnvironment statically selects the authentication strategy.  Local
// deployments issue tokens themselves and allow self registration, hosted
// ones delegate to an external identity provider.
func ForEnvironment(env *environment.Environment, api *client.Client, selection Selection) Strategy {
	if selection.AccessToken != "" {
		return Static(selection.AccessToken)
	}

	if env.IsLocal() {
		return Chain{
			NewDirectExchange(api, selection.Credentials),
			NewRegisterThenExchange(api, selection.Credentials),
		}
	}

	factory := selection.IdentityProviders
	if factory == nil {
		factory = NewCognitoIdentityProvider
	}

	return NewDiscovery(api, selection.Credentials, factory)
}

// Authenticate runs the strategy and installs the token on the client.
func Authenticate(ctx context.Context, s Strategy, api *client.Client) error {
	log.FromContext(ctx).Info("authenticating", "strategy", s.Name())

	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	api.SetAuthToken(token)

	return nil
}
