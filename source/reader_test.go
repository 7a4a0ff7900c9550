package source

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/poiesic/finwhiz/blob/memory"
	"github.com/poiesic/finwhiz/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func collect(t *testing.T, r *Reader, obj Object) ([]*core.SourceRecord, error) {
	t.Helper()
	var records []*core.SourceRecord
	for rec, err := range r.Records(context.Background(), obj) {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatNDJSON, DetectFormat("docs/a.ndjson"))
	assert.Equal(t, FormatJSONLGzip, DetectFormat("docs/a.jsonl.gz"))
	assert.Equal(t, FormatUnknown, DetectFormat("docs/a.jsonl"))
	assert.Equal(t, FormatUnknown, DetectFormat("docs/a.json.gz"))
	assert.Equal(t, "jsonl.gz", FormatJSONLGzip.String())
}

func TestReader_Objects(t *testing.T) {
	store := memory.New()
	store.PutBytes("raw/irs_2024.ndjson", nil)
	store.PutBytes("raw/sec_2023.jsonl.gz", nil)
	store.PutBytes("raw/readme.txt", nil)
	store.PutBytes("other/irs_2022.ndjson", nil)

	reader, err := NewReader(store)
	require.NoError(t, err)

	objects, err := reader.Objects(context.Background(), "raw/", "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, Object{Name: "raw/irs_2024.ndjson", Format: FormatNDJSON}, objects[0])
	assert.Equal(t, FormatJSONLGzip, objects[1].Format)

	filtered, err := reader.Objects(context.Background(), "", "irs")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "other/irs_2022.ndjson", filtered[0].Name)
	assert.Equal(t, "raw/irs_2024.ndjson", filtered[1].Name)
}

func TestReader_RecordsNDJSON(t *testing.T) {
	store := memory.New()
	store.PutBytes("a.ndjson", []byte(`{"id":"r1","text":"hello","year":2024}

{"id":"r2","title":"Forms"}
`))
	reader, err := NewReader(store)
	require.NoError(t, err)

	records, err := collect(t, reader, Object{Name: "a.ndjson", Format: FormatNDJSON})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "r1", records[0].ID)
	require.NotNil(t, records[0].Text)
	assert.Equal(t, "hello", *records[0].Text)
	require.NotNil(t, records[0].Year)
	assert.Equal(t, 2024, *records[0].Year)

	assert.Equal(t, "r2", records[1].ID)
	assert.Nil(t, records[1].Text)
	assert.Nil(t, records[1].Year)
}

func TestReader_RecordsGzip(t *testing.T) {
	store := memory.New()
	store.PutBytes("b.jsonl.gz", gzipBytes(t, `{"id":"g1","text":"one"}`+"\n"+`{"id":"g2","text":"two"}`))
	reader, err := NewReader(store)
	require.NoError(t, err)

	records, err := collect(t, reader, Object{Name: "b.jsonl.gz", Format: FormatJSONLGzip})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "g2", records[1].ID)
}

func TestReader_DecodeErrorEndsStream(t *testing.T) {
	store := memory.New()
	store.PutBytes("bad.ndjson", []byte("{\"id\":\"ok\"}\n{not json}\n{\"id\":\"never\"}\n"))
	reader, err := NewReader(store)
	require.NoError(t, err)

	records, err := collect(t, reader, Object{Name: "bad.ndjson", Format: FormatNDJSON})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "line 2")
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].ID)
}

func TestReader_CorruptGzip(t *testing.T) {
	store := memory.New()
	store.PutBytes("bad.jsonl.gz", []byte("not gzip"))
	reader, err := NewReader(store)
	require.NoError(t, err)

	_, err = collect(t, reader, Object{Name: "bad.jsonl.gz", Format: FormatJSONLGzip})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReader_LazyAndRestartable(t *testing.T) {
	store := memory.New()
	store.PutBytes("a.ndjson", []byte("{\"id\":\"1\"}\n{\"id\":\"2\"}\n{\"id\":\"3\"}\n"))
	reader, err := NewReader(store)
	require.NoError(t, err)
	obj := Object{Name: "a.ndjson", Format: FormatNDJSON}

	seq := reader.Records(context.Background(), obj)
	assert.Equal(t, 0, store.Opens("a.ndjson"), "object must not be opened before the first pull")

	for rec, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "1", rec.ID)
		break
	}
	records, err := collect(t, reader, obj)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, store.Opens("a.ndjson"))
}

func TestReader_MissingObject(t *testing.T) {
	reader, err := NewReader(memory.New())
	require.NoError(t, err)

	_, err = collect(t, reader, Object{Name: "gone.ndjson", Format: FormatNDJSON})
	assert.Error(t, err)
}

func TestReader_UnknownFormat(t *testing.T) {
	reader, err := NewReader(memory.New())
	require.NoError(t, err)

	_, err = collect(t, reader, Object{Name: "x.txt"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWithMaxLineSize(t *testing.T) {
	_, err := NewReader(memory.New(), WithMaxLineSize(10))
	assert.Error(t, err)
}
