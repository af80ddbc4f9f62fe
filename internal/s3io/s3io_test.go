package s3io

import (
	"context"
	"testing"
)

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{uri: "s3://bucket/path/to/file.csv", bucket: "bucket", key: "path/to/file.csv"},
		{uri: "s3://bucket/prefix/", bucket: "bucket", key: "prefix/"},
		{uri: "s3://bucket", bucket: "bucket", key: ""},
		{uri: "http://bucket/key", wantErr: true},
		{uri: "s3:///key", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()
			bucket, key, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseURI(%q) error = nil, want error", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q) error = %v", tt.uri, err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Fatalf("ParseURI(%q) = %q, %q, want %q, %q", tt.uri, bucket, key, tt.bucket, tt.key)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")

	got := FromEnv()
	want := Config{Region: "us-west-2", AccessKey: "ak", SecretKey: "sk", Endpoint: "http://localhost:9000"}
	if got != want {
		t.Fatalf("FromEnv() = %+v, want %+v", got, want)
	}
}

func TestNewStaticConfig(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	client, err := New(context.Background(), Config{
		Region:    "us-east-1",
		AccessKey: "ak",
		SecretKey: "sk",
		Endpoint:  "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client == nil {
		t.Fatal("New() returned a nil client")
	}
}
