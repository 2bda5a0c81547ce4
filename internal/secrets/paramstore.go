package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the part of *ssm.Client the store uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamStore reads decrypted values from AWS SSM Parameter Store.
type ParamStore struct {
	api ssmAPI
}

func NewParamStore(api ssmAPI) (*ParamStore, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &ParamStore{api: api}, nil
}

// NewDefaultParamStore uses the default AWS credential chain and region.
func NewDefaultParamStore(ctx context.Context) (*ParamStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("paramstore: load aws config: %w", err)
	}
	return NewParamStore(ssm.NewFromConfig(cfg))
}

func (p *ParamStore) GetParameter(ctx context.Context, name string) (string, error) {
	if p.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// ResolveBotToken returns token when set, otherwise reads param from the
// store. An empty result means direct messages stay disabled.
func ResolveBotToken(ctx context.Context, token, param string, store Getter) (string, error) {
	if token = strings.TrimSpace(token); token != "" {
		return token, nil
	}
	if strings.TrimSpace(param) == "" || store == nil {
		return "", nil
	}
	value, err := store.GetParameter(ctx, param)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
