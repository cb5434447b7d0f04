package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const kubernetesServiceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// LoadAWSConfig loads the default credential chain. A shared config profile is only
// selected outside Kubernetes and only when AWS_PROFILE is set.
func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error

	if profile := getProfile(); profile != "" && !isInKubernetes() {
		options = append(options, config.WithSharedConfigProfile(profile))
	}

	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}

	return config.LoadDefaultConfig(ctx, options...)
}

func isInKubernetes() bool {
	_, err := os.Stat(kubernetesServiceAccountToken)
	return err == nil
}

func getProfile() string {
	return os.Getenv("AWS_PROFILE")
}

// CallerIdentityAPI is satisfied by *sts.Client.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// GetCallerIdentity confirms the loaded credentials are accepted by AWS.
func GetCallerIdentity(ctx context.Context, client CallerIdentityAPI) (*sts.GetCallerIdentityOutput, error) {
	return client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}
