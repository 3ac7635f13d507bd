package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySource(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SourceRemote, ClassifySource("https://example.com/a.jpg"))
	assert.Equal(t, SourceRemote, ClassifySource("HTTP://example.com/a.jpg"))
	assert.Equal(t, SourceLocal, ClassifySource("images/photo.jpg"))
	assert.Equal(t, SourceLocal, ClassifySource("/abs/photo.jpg"))
	assert.Equal(t, SourceLocal, ClassifySource("ftp://example.com/a.jpg"))
	assert.Equal(t, "remote", SourceRemote.String())
	assert.Equal(t, "local", SourceLocal.String())
}

func TestValidateSourceReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref   string
		valid bool
	}{
		{"images/photo.jpg", true},
		{"/var/data/photo.png", true},
		{"https://example.com/photo.jpg", true},
		{"https://example.com/photo.jpg?sig=abc", true},
		{"", false},
		{"   ", false},
		{"ab", false},
		{"https://", false},
		{"https://example.com/", false},
		{"images/", false},
	}

	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			t.Parallel()
			err := ValidateSourceReference(tc.ref)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSourceReference)
			}
		})
	}
}

func TestSourceFileName(t *testing.T) {
	t.Parallel()

	name, ext := SourceFileName("images/photo.jpg")
	assert.Equal(t, "photo", name)
	assert.Equal(t, ".jpg", ext)

	name, ext = SourceFileName("https://cdn.example.com/a/b/cat.png?size=large")
	assert.Equal(t, "cat", name)
	assert.Equal(t, ".png", ext)

	name, ext = SourceFileName("images/archive.tar.gz")
	assert.Equal(t, "archive.tar", name)
	assert.Equal(t, ".gz", ext)
}
