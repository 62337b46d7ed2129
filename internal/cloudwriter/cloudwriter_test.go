package cloudwriter

import (
	"context"
	"testing"

	"github.com/chrisdamba/trafikcam/internal/models"
)

func TestObjectKey(t *testing.T) {
	testCases := []struct {
		prefix   string
		elem     []string
		expected string
	}{
		{"", []string{"E6", "img.jpg"}, "E6/img.jpg"},
		{"archive/", []string{"E6", "img.jpg"}, "archive/E6/img.jpg"},
		{"/a/b/", []string{"c"}, "a/b/c"},
	}
	for _, tc := range testCases {
		if got := ObjectKey(tc.prefix, tc.elem...); got != tc.expected {
			t.Errorf("ObjectKey(%q, %v) = %q, want %q", tc.prefix, tc.elem, got, tc.expected)
		}
	}
}

func TestNewFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := NewFactory(context.Background(), models.CloudStorageConfig{Provider: "azure"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
