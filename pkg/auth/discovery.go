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
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/decode-cloud/e2e/pkg/client"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

//go:generate mockgen -source=discovery.go -destination=mock/interfaces.go -package=mock

// IdentityProvider is the part of the Cognito API used for password based
// token issue.
type IdentityProvider interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// IdentityProviderFactory returns an identity provider for a region.
type IdentityProviderFactory func(ctx context.Context, region string) (IdentityProvider, error)

// NewCognitoIdentityProvider returns a Cognito client.  Password auth is
// an unauthenticated call, so no AWS credentials are needed or used.
func NewCognitoIdentityProvider(ctx context.Context, region string) (IdentityProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return cognitoidentityprovider.NewFromConfig(cfg), nil
}

// AccessInfo is returned by the API's discovery endpoint.
type AccessInfo struct {
	Cognito CognitoInfo `json:"cognito"`
}

// CognitoInfo describes the user pool the API trusts.
type CognitoInfo struct {
	Region     string `json:"region"`
	ClientID   string `json:"client_id"`
	UserPoolID string `json:"user_pool_id,omitempty"`
}

// Discovery asks the API which identity provider it trusts, then exchanges
// credentials with that provider directly, bypassing the API.
type Discovery struct {
	api         *client.Client
	credentials Credentials
	factory     IdentityProviderFactory
}

var _ Strategy = &Discovery{}

// NewDiscovery returns a new discovery strategy.
func NewDiscovery(api *client.Client, credentials Credentials, factory IdentityProviderFactory) *Discovery {
	return &Discovery{
		api:         api,
		credentials: credentials,
		factory:     factory,
	}
}

func (*Discovery) Name() string {
	return "discovery"
}

// AccessInfo reads the identity provider configuration.
func (s *Discovery) AccessInfo(ctx context.Context) (*AccessInfo, error) {
	var info AccessInfo

	if err := s.api.DoJSON(ctx, http.MethodGet, s.api.Endpoints().AccessInfo(), nil, &info); err != nil {
		return nil, fmt.Errorf("reading access info: %w", err)
	}

	if info.Cognito.Region == "" || info.Cognito.ClientID == "" {
		return nil, fmt.Errorf("%w: access info lacks cognito region or client id", ErrAuthentication)
	}

	return &info, nil
}

func (s *Discovery) Token(ctx context.Context) (string, error) {
	info, err := s.AccessInfo(ctx)
	if err != nil {
		return "", err
	}

	log.FromContext(ctx).V(1).Info("exchanging credentials with identity provider", "region", info.Cognito.Region)

	provider, err := s.factory(ctx, info.Cognito.Region)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	output, err := provider.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": s.credentials.Email,
			"PASSWORD": s.credentials.Password,
		},
		ClientId: aws.String(info.Cognito.ClientID),
	})
	if err != nil {
		return "", classifyIdentityProviderError(err)
	}

	if output.AuthenticationResult == nil {
		return "", fmt.Errorf("%w: identity provider issued challenge %q", ErrAuthentication, output.ChallengeName)
	}

	token := aws.ToString(output.AuthenticationResult.IdToken)
	if token == "" {
		return "", fmt.Errorf("%w: identity provider returned no id token", ErrAuthentication)
	}

	return token, nil
}

func classifyIdentityProviderError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: identity provider rejected request: %s: %s", ErrAuthentication, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}

	return fmt.Errorf("%w: identity provider: %w", ErrAuthentication, err)
}
