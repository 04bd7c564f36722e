package checksum

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// echo -n "hello" | sha256sum
	helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptySum = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestSum(t *testing.T) {
	assert.Equal(t, helloSum, Sum([]byte("hello")))
	assert.Equal(t, emptySum, Sum(nil))
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hello", "hello", helloSum},
		{"empty string", "", emptySum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestCalculate_ReadError(t *testing.T) {
	_, err := Calculate(failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestCopy(t *testing.T) {
	var buf bytes.Buffer
	n, sum, err := Copy(&buf, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, helloSum, sum)
	assert.Equal(t, "hello", buf.String())
}

func TestCopy_ReadError(t *testing.T) {
	var buf bytes.Buffer
	_, sum, err := Copy(&buf, failingReader{})
	require.Error(t, err)
	assert.Empty(t, sum)
}
