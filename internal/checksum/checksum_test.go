package checksum

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlg(t *testing.T) {
	alg, err := ParseAlg("sha256")
	require.NoError(t, err)
	assert.Equal(t, SHA256, alg)

	alg, err = ParseAlg("sha512")
	require.NoError(t, err)
	assert.Equal(t, SHA512, alg)

	_, err = ParseAlg("md5")
	assert.Error(t, err)
	_, err = ParseAlg("")
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "greeting.txt", []byte("hello world"), 0o644))

	sum, err := Sum(fs, "greeting.txt", SHA256)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)

	sum, err = Sum(fs, "greeting.txt", SHA512)
	require.NoError(t, err)
	assert.Equal(t,
		"309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f",
		sum)
}

func TestSum_MissingFile(t *testing.T) {
	_, err := Sum(memfs.New(), "nope", SHA256)
	assert.Error(t, err)
}
