package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

var rows = []domain.MetricRow{
	domain.NewRow("2024-03-04", "github", "merge_rate", 66.67),
	domain.NewRow("2024-03-04", "github", "total_merged", 12),
	{Date: "2024-03-04", Category: "github", Metric: "top_repo", Value: domain.Text("api, web")},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, rows))

	assert.Equal(t, "date,category,metric,value\n"+
		"2024-03-04,github,merge_rate,66.67\n"+
		"2024-03-04,github,total_merged,12\n"+
		"2024-03-04,github,top_repo,\"api, web\"\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, rows))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, 66.67, decoded[0]["value"])
	assert.Equal(t, "merge_rate", decoded[0]["metric"])
	assert.Equal(t, "api, web", decoded[2]["value"])
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, nil))

	assert.Equal(t, "[]\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "csv", want: FormatCSV},
		{in: " JSON ", want: FormatJSON},
		{in: "xml", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("yaml"), rows))
}
