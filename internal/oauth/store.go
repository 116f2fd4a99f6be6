package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/inmodocs/inmodocs-bot/internal/config"
)

// TokenStore persists the Google OAuth token between restarts. Token
// contents are never logged by any implementation.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// NewStoreFromConfig selects the backend: SSM Parameter Store when the
// config asks for it, a local file otherwise.
func NewStoreFromConfig(ctx context.Context, cfg *config.Config) (TokenStore, error) {
	if cfg.UseSSMTokenStore {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewSSMStore(ssm.NewFromConfig(awsCfg), cfg.SSMTokenParam), nil
	}
	return NewFileStore(cfg.TokenFilePath), nil
}

// FileStore keeps the token as a JSON file. Development backend.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &tok, nil
}

func (s *FileStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	log.Info().Str("path", s.path).Msg("OAuth token written to file")
	return nil
}

// ssmAPI is the slice of the SSM client the store uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, opts ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMStore keeps the token as a SecureString parameter. Production backend.
type SSMStore struct {
	client ssmAPI
	param  string
}

// NewSSMStore returns a store writing to the named parameter.
func NewSSMStore(client ssmAPI, param string) *SSMStore {
	return &SSMStore{client: client, param: param}
}

func (s *SSMStore) Load(ctx context.Context) (*oauth2.Token, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read token from SSM parameter %s: %w", s.param, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(*out.Parameter.Value), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from SSM parameter %s: %w", s.param, err)
	}
	return &tok, nil
}

func (s *SSMStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	_, err = s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.param),
		Value:     aws.String(string(data)),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to store token in SSM parameter %s: %w", s.param, err)
	}
	log.Info().Str("param", s.param).Msg("OAuth token stored in SSM")
	return nil
}
