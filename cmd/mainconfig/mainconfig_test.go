package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-west-2",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("expected region us-west-2, got %q", awsCfg.Region)
	}
	if awsCfg.EndpointResolverWithOptions == nil {
		t.Fatalf("expected endpoint resolver to be set")
	}

	for _, service := range []string{sesv2.ServiceID, bedrockruntime.ServiceID} {
		endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(service, "us-west-2")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", service, err)
		}
		if endpoint.URL != "http://localhost:4566" {
			t.Fatalf("%s: unexpected endpoint %q", service, endpoint.URL)
		}
	}
	if _, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "us-west-2"); err == nil {
		t.Fatalf("expected other services to use default resolution")
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no endpoint resolver without override")
	}
}
