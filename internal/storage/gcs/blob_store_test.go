package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client")
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "index.html", objectKey("", "/index.html"))
	assert.Equal(t, "site/blog/page/2.html", objectKey("site", "blog/page/2.html"))
}
