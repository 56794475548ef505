package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "animals.csv", []byte("n_legs,animals\n2,Flamingo\n4,Horse\n5,Brittle stars\n"))

	out, err := run(t, "load", path, "--name", "animals")
	require.NoError(t, err)
	assert.Contains(t, out, "table animals (csv, 3 rows)")
	assert.Contains(t, out, "n_legs")
	assert.Contains(t, out, "integer")
}

func TestLoadJSONOutput(t *testing.T) {
	path := writeFile(t, "frame.json", []byte(`{"columns":["a","b"],"index":["x","y"],"data":[[1,"p"],[2.5,"q"]]}`))

	out, err := run(t, "load", path, "--frame", "-o", "json")
	require.NoError(t, err)

	var infos []table.Info
	require.NoError(t, jsonpool.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, source.KindFrame, infos[0].Source)
	assert.Equal(t, []string{"a", "b", "index"}, infos[0].Columns())
	assert.Equal(t, schema.Float, infos[0].Fields[0].Type)
	assert.True(t, infos[0].Fields[2].Synthetic)
}

func TestLoadFailure(t *testing.T) {
	path := writeFile(t, "short.csv", []byte("a,b,c\n1,2"))

	_, err := run(t, "load", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV parse error")

	_, err = run(t, "load", "a.csv", "b.csv", "--name", "x")
	assert.Error(t, err)
}

func TestSourceForFile(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewInt64Builder(mem)
	b.AppendValues([]int64{1, 2}, nil)
	arr := b.NewArray()
	b.Release()
	defer arr.Release()
	sch := arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec := array.NewRecord(sch, []arrow.Array{arr}, 2)
	defer rec.Release()
	ipcData, err := formats.EncodeRecord(rec)
	require.NoError(t, err)

	tests := []struct {
		file  string
		data  []byte
		frame bool
		want  source.Kind
	}{
		{"a.csv", []byte("a\n1\n"), false, source.KindCSV},
		{"a.TSV", []byte("a\n1\n"), false, source.KindCSV},
		{"a.arrow", ipcData, false, source.KindArrowIPC},
		{"a.ipc", ipcData, false, source.KindArrowIPC},
		{"a.parquet", []byte("PAR1"), false, source.KindParquet},
		{"a.avro", []byte("Obj\x01"), false, source.KindAvro},
		{"a.json", []byte(`[{"a":1}]`), false, source.KindRecords},
		{"a.json", []byte(`{"columns":["a"],"data":[[1]]}`), true, source.KindFrame},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			src, release, err := sourceForFile(writeFile(t, tt.file, tt.data), tt.frame)
			require.NoError(t, err)
			defer release()
			assert.Equal(t, tt.want, src.Kind())
		})
	}

	tsv, _, err := sourceForFile(writeFile(t, "b.tsv", []byte("a\tb\n")), false)
	require.NoError(t, err)
	assert.Equal(t, '\t', tsv.(source.CSV).Delimiter)

	_, _, err = sourceForFile(writeFile(t, "a.xlsx", nil), false)
	assert.Error(t, err)
	_, _, err = sourceForFile(filepath.Join(t.TempDir(), "missing.csv"), false)
	assert.Error(t, err)
	_, _, err = sourceForFile(filepath.Join(t.TempDir(), "missing.parquet"), false)
	assert.Error(t, err)
}

func TestDecodeSplitFrame(t *testing.T) {
	f, err := decodeSplitFrame([]byte(`{"columns":["a","b"],"index":[10,11],"data":[[1,"x"],[9007199254740993,null]]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, f.Columns)
	assert.Equal(t, []interface{}{int64(10), int64(11)}, f.Index)
	assert.Equal(t, [][]interface{}{{int64(1), "x"}, {int64(9007199254740993), nil}}, f.Rows)

	f, err = decodeSplitFrame([]byte(`{"columns":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, f.Rows)
	assert.Nil(t, f.Index)

	_, err = decodeSplitFrame([]byte(`{"columns":`))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Lumen v"+version)
}
