// Package awskms provides crypto.Signer backed by AWS KMS asymmetric keys,
// to sign tokens with keys that never leave KMS.
package awskms

import (
	"context"
	"crypto/x509"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xjwt/jwt"
	"github.com/effective-security/xjwt/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/xjwt", "awskms")

// ProviderName specifies a provider name
const ProviderName = "AWSKMS"

// KmsClient interface
type KmsClient interface {
	CreateKey(context.Context, *kms.CreateKeyInput, ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	DescribeKey(context.Context, *kms.DescribeKeyInput, ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetPublicKey(context.Context, *kms.GetPublicKeyInput, ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(context.Context, *kms.SignInput, ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KmsClientFactory override for unittest
var KmsClientFactory = func(cfg aws.Config, optFns ...func(*kms.Options)) KmsClient {
	return kms.NewFromConfig(cfg, optFns...)
}

// Config for KMS client
type Config struct {
	// Region specifies AWS region, if not set AWS_DEFAULT_REGION is used
	Region string `json:"region,omitempty" yaml:"region,omitempty" env:"REGION"`
	// Endpoint specifies custom KMS endpoint, for example local emulator
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"ENDPOINT"`
	// KeyID specifies KMS key ID or ARN to sign with
	KeyID string `json:"key_id,omitempty" yaml:"key_id,omitempty" env:"KEY_ID"`
}

// NewClient returns KMS client
func NewClient(ctx context.Context, region, endpoint string) (KmsClient, error) {
	region = values.Select(region != "", region, os.Getenv("AWS_DEFAULT_REGION"))

	var awsops []func(*awsconfig.LoadOptions) error
	if region != "" {
		awsops = append(awsops, awsconfig.WithRegion(region))
	}

	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	token := os.Getenv("AWS_SESSION_TOKEN")
	if id != "" && secret != "" {
		awsops = append(awsops, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, token)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsops...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var kmsops []func(*kms.Options)
	if endpoint != "" {
		kmsops = append(kmsops, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	logger.KV(xlog.DEBUG, "region", region, "endpoint", endpoint)
	return KmsClientFactory(cfg, kmsops...), nil
}

// NewSignerFromConfig returns Signer for the configured key
func NewSignerFromConfig(ctx context.Context, cfg *Config) (*Signer, error) {
	if cfg.KeyID == "" {
		return nil, errors.New("KMS key_id is not configured")
	}
	client, err := NewClient(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return New(ctx, client, cfg.KeyID)
}

// New returns Signer for existing KMS key
func New(ctx context.Context, client KmsClient, keyID string) (*Signer, error) {
	defer metricskey.PerfCryptoOperation.MeasureSince(time.Now(), ProviderName, "getkey")

	ki, err := client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: &keyID})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to describe key, id=%s", keyID)
	}
	if ki.KeyMetadata.KeyUsage != types.KeyUsageTypeSignVerify {
		return nil, errors.Errorf("key is not for signing, id=%s, usage=%s", keyID, ki.KeyMetadata.KeyUsage)
	}

	resp, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: &keyID})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to get public key, id=%s", keyID)
	}

	pub, err := x509.ParsePKIXPublicKey(resp.PublicKey)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse public key, id=%s", keyID)
	}
	return NewSigner(keyID, aws.ToString(ki.KeyMetadata.Description), resp.SigningAlgorithms, pub, client), nil
}

var keySpecs = map[string]types.KeySpec{
	jwt.RS256: types.KeySpecRsa2048,
	jwt.RS384: types.KeySpecRsa3072,
	jwt.RS512: types.KeySpecRsa4096,
	jwt.ES256: types.KeySpecEccNistP256,
	jwt.ES384: types.KeySpecEccNistP384,
	jwt.ES512: types.KeySpecEccNistP521,
}

// GenerateKey creates KMS signing key for the JWT algorithm
func GenerateKey(ctx context.Context, client KmsClient, alg, label string) (*Signer, error) {
	defer metricskey.PerfCryptoOperation.MeasureSince(time.Now(), ProviderName, "genkey")

	spec, ok := keySpecs[alg]
	if !ok {
		return nil, errors.Errorf("unsupported algorithm: %s", alg)
	}

	input := &kms.CreateKeyInput{
		KeySpec:     spec,
		KeyUsage:    types.KeyUsageTypeSignVerify,
		Description: &label,
	}
	resp, err := client.CreateKey(ctx, input)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create key with label: %q", label)
	}

	keyID := aws.ToString(resp.KeyMetadata.KeyId)
	logger.KV(xlog.INFO, "arn", aws.ToString(resp.KeyMetadata.Arn), "id", keyID, "label", label)

	return New(ctx, client, keyID)
}
