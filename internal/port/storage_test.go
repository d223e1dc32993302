package port_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicesplit/internal/port"
)

func TestParseObjectURI(t *testing.T) {
	uri, err := port.ParseObjectURI(" s3://invoices/2024/march/inv-7.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "invoices", uri.Bucket)
	assert.Equal(t, "2024/march/inv-7.pdf", uri.Key)
	assert.Equal(t, "s3://invoices/2024/march/inv-7.pdf", uri.String())

	for _, bad := range []string{"", "/tmp/inv.pdf", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := port.ParseObjectURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsObjectURI(t *testing.T) {
	assert.True(t, port.IsObjectURI("s3://b/k"))
	assert.False(t, port.IsObjectURI("invoice.pdf"))
}
