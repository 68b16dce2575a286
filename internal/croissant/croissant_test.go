package croissant

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestContent = "group,patient_id,view,proc_url,mask_url,proc_name,mask_name\n" +
	"case,C0250,LCC,https://example.test/p,https://example.test/m,p.dcm,m.dcm\n"

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(manifestContent), 0o644))
	return path
}

func TestGenerate(t *testing.T) {
	path := writeManifest(t)

	doc, err := Generate(path, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, "sc:Dataset", doc.Type)
	assert.Equal(t, ConformsTo, doc.ConformsTo)
	assert.Equal(t, "EDRN_Breast_Density_Collection_2", doc.Name)
	assert.NotEmpty(t, doc.Context)

	require.Len(t, doc.Distribution, 1)
	fo := doc.Distribution[0]
	assert.Equal(t, "cr:FileObject", fo.Type)
	assert.Equal(t, "manifest.csv", fo.ID)
	assert.Equal(t, "text/csv", fo.EncodingFormat)

	sum := sha256.Sum256([]byte(manifestContent))
	assert.Equal(t, hex.EncodeToString(sum[:]), fo.SHA256)

	require.Len(t, doc.RecordSets, 1)
	rs := doc.RecordSets[0]
	assert.Equal(t, "mammograms", rs.ID)
	require.Len(t, rs.Fields, 7)

	columns := make([]string, 0, len(rs.Fields))
	for _, f := range rs.Fields {
		assert.Equal(t, "cr:Field", f.Type)
		assert.Equal(t, "manifest.csv", f.Source.FileObject.ID)
		columns = append(columns, f.Source.Extract.Column)
	}
	assert.Equal(t,
		[]string{"group", "patient_id", "view", "proc_url", "mask_url", "proc_name", "mask_name"},
		columns)
}

func TestGenerateURLFieldsAreTyped(t *testing.T) {
	doc, err := Generate(writeManifest(t), DefaultParams())
	require.NoError(t, err)

	types := make(map[string]string)
	for _, f := range doc.RecordSets[0].Fields {
		types[f.Source.Extract.Column] = f.DataType
	}
	assert.Equal(t, "sc:URL", types["proc_url"])
	assert.Equal(t, "sc:URL", types["mask_url"])
	assert.Equal(t, "sc:Text", types["group"])
}

func TestGenerateMissingManifest(t *testing.T) {
	_, err := Generate(filepath.Join(t.TempDir(), "nope.csv"), DefaultParams())
	assert.Error(t, err)
}

func TestGenerateDocumentMarshals(t *testing.T) {
	doc, err := Generate(writeManifest(t), DefaultParams())
	require.NoError(t, err)

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "@context")
	assert.Contains(t, decoded, "recordSet")
	assert.Contains(t, decoded, "distribution")
}

func TestSHA256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := SHA256File(path)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}
