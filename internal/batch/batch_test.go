package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBatch = `HITId,WorkerId,Answer.surveycode,Approve
3X1,W1,1b4e28ba-2fa1-11d2-883f-0016d3cca427,x
3X2,W2,  6fa459ea-ee8a-3ca4-894e-db77e160355e  ,
3X3,W3,,
`

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(strings.NewReader(sampleBatch))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		"6fa459ea-ee8a-3ca4-894e-db77e160355e",
	}, ids)
}

func TestParseIDsByteOrderMark(t *testing.T) {
	ids, err := ParseIDs(strings.NewReader("\uFEFFAnswer.surveycode\nabc\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids)
}

func TestParseIDsMissingColumn(t *testing.T) {
	_, err := ParseIDs(strings.NewReader("HITId,WorkerId\n1,2\n"))
	assert.True(t, errors.Is(err, ErrNoIDColumn))

	_, err = ParseIDs(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNoIDColumn))
}

func TestReadIDsAndListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Batch_2.csv"), []byte(sampleBatch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Batch_1.csv"), []byte("Answer.surveycode\nzzz\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte{0}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	files, err := ListFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "Batch_1.csv"), filepath.Join(dir, "Batch_2.csv")}, files)

	ids, err := ReadIDs(files[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, ids)

	_, err = ListFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestOutputNames(t *testing.T) {
	now := time.Date(2023, 4, 27, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "Data_combined_230427090503.csv", CombinedName(now))
	assert.Equal(t, "Data_for_Batch_4980_batch_results.csv", SeparateName("batches/input/Batch_4980_batch_results.csv"))
}
