package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed no such key", &types.NoSuchKey{}, true},
		{"wrapped not found", fmt.Errorf("delete: %w", &types.NotFound{}), true},
		{"string match", errors.New("api error NoSuchKey: gone"), true},
		{"access denied", errors.New("api error AccessDenied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestFullKey(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "prod/"})
	assert.Equal(t, "prod/place_images/u1/a.jpg", s.fullKey("place_images/u1/a.jpg"))
}
