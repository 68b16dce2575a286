package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want FlexString
	}{
		{name: "bare string", data: `"PROC"`, want: "PROC"},
		{name: "single-element list", data: `["PROC"]`, want: "PROC"},
		{name: "multi-element list keeps first", data: `["MASK", "PROC"]`, want: "MASK"},
		{name: "empty list", data: `[]`, want: ""},
		{name: "null", data: `null`, want: ""},
		{name: "number", data: `42`, want: "42"},
		{name: "nested list", data: `[["RAW"]]`, want: "RAW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.data), &s))
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "MASK", StringValue("MASK"))
	assert.Equal(t, "MASK", StringValue([]any{"MASK"}))
	assert.Equal(t, "MASK", StringValue([]any{" MASK "}))
	assert.Equal(t, "", StringValue(nil))
	assert.Equal(t, "", StringValue([]any{}))
	assert.Equal(t, "3", StringValue(float64(3)))
	assert.Equal(t, "true", StringValue(true))
}

func TestIntValue(t *testing.T) {
	assert.Equal(t, int64(512), IntValue(float64(512)))
	assert.Equal(t, int64(512), IntValue([]any{float64(512)}))
	assert.Equal(t, int64(512), IntValue("512"))
	assert.Equal(t, int64(0), IntValue("not a number"))
	assert.Equal(t, int64(0), IntValue(nil))
}

func TestGroupLabel(t *testing.T) {
	tests := []struct {
		patientID string
		want      string
	}{
		{"C0250", "case"},
		{"c0250", "case"},
		{"N0500", "control"},
		{"X0123", "control"}, // unexpected leading letters pass through as control
		{"", "control"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupLabel(tt.patientID), "patient %q", tt.patientID)
	}
}

func TestFileRecordRoundTrip(t *testing.T) {
	in := FileRecord{
		FileID:      "Collection/PROC/N0500_LCC.dcm",
		Name:        "N0500_LCC.dcm",
		FileType:    "DICOM",
		FileSize:    1024,
		DatasetID:   "Collection/PROC",
		DownloadURL: "https://example.test/download?id=Collection/PROC/N0500_LCC.dcm",
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out FileRecord
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestFileRecordNameMayBeList(t *testing.T) {
	// Solr sometimes delivers the name field as a one-element list.
	var f FileRecord
	require.NoError(t, json.Unmarshal([]byte(`{"file_id":"x","name":["N0500_LCC.dcm"]}`), &f))
	assert.Equal(t, "N0500_LCC.dcm", f.Name.String())
}
