package etl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/raaihank/trace-sentinel/internal/spanscan"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMasker(t *testing.T) *spanscan.Masker {
	t.Helper()
	email, err := privacy.NewRegexFinder(privacy.EmailFinderName, `[\w.]+@[\w.]+\.\w+`, "")
	require.NoError(t, err)
	engine := privacy.NewEngine([]privacy.Finder{email})
	return spanscan.NewMasker(spanscan.NewDetector(engine, nil, nil, nil, zap.NewNop()), nil, nil, "")
}

func testSpans(n int) []spanscan.Span {
	spans := make([]spanscan.Span, n)
	for i := range spans {
		value := "plain"
		if i%3 == 0 {
			value = fmt.Sprintf("user%d@example.com", i)
		}
		spans[i] = spanscan.Span{
			TraceID:       fmt.Sprintf("trace-%d", i),
			SpanID:        fmt.Sprintf("span-%d", i),
			ServiceName:   "svc",
			OperationName: "op",
			Tags:          []spanscan.Tag{{Key: "user", Type: spanscan.TagTypeString, VStr: value}},
		}
	}
	return spans
}

func decodeOutput(t *testing.T, out *bytes.Buffer) []spanscan.Span {
	t.Helper()
	var spans []spanscan.Span
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var span spanscan.Span
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &span))
		spans = append(spans, span)
	}
	return spans
}

func TestProcessJSON(t *testing.T) {
	var in bytes.Buffer
	enc := json.NewEncoder(&in)
	for _, span := range testSpans(25) {
		require.NoError(t, enc.Encode(span))
	}

	p := NewPipeline(newMasker(t), config.BatchConfig{BatchSize: 4, WorkerCount: 3, ProgressReport: 10}, zap.NewNop())

	var out bytes.Buffer
	result, err := p.ProcessJSON(context.Background(), &in, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(25), result.TotalRecords)
	assert.Equal(t, int64(25), result.ProcessedOK)
	assert.Equal(t, int64(9), result.MaskedRecords)
	assert.Equal(t, int64(9), result.Findings)

	spans := decodeOutput(t, &out)
	require.Len(t, spans, 25)
	for i, span := range spans {
		assert.Equal(t, fmt.Sprintf("span-%d", i), span.SpanID, "output keeps input order")
		if i%3 == 0 {
			assert.Equal(t, spanscan.DefaultPlaceholder, span.Tags[0].VStr)
		} else {
			assert.Equal(t, "plain", span.Tags[0].VStr)
		}
	}
	assert.Equal(t, int64(7), p.GetStats().CurrentBatch)
}

func TestProcessJSONMalformed(t *testing.T) {
	in := strings.NewReader(`{"spanId":"a","tags":[{"key":"k","vStr":"x@example.com"}]}` + "\n" + `{"spanId":`)
	p := NewPipeline(newMasker(t), config.BatchConfig{BatchSize: 10, WorkerCount: 2}, zap.NewNop())

	var out bytes.Buffer
	result, err := p.ProcessJSON(context.Background(), in, &out)
	require.Error(t, err)
	assert.Equal(t, int64(1), result.ProcessedOK, "spans read before the error are still written")
	assert.Equal(t, int64(1), result.ProcessedFailed)
	assert.Len(t, decodeOutput(t, &out), 1)
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(newMasker(t), config.BatchConfig{}, zap.NewNop())
	_, err := p.ProcessJSON(ctx, strings.NewReader(`{"spanId":"a"}`), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.parquet")
	file, err := os.Create(path)
	require.NoError(t, err)

	writer := parquet.NewWriter(file, parquet.SchemaOf(new(spanscan.Span)))
	for _, span := range testSpans(6) {
		span := span
		require.NoError(t, writer.Write(&span))
	}
	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())

	p := NewPipeline(newMasker(t), config.BatchConfig{BatchSize: 4, WorkerCount: 2}, zap.NewNop())

	var out bytes.Buffer
	result, err := p.ProcessFile(context.Background(), path, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.TotalRecords)
	assert.Equal(t, int64(2), result.MaskedRecords)

	spans := decodeOutput(t, &out)
	require.Len(t, spans, 6)
	assert.Equal(t, "trace-3", spans[3].TraceID)
	assert.Equal(t, spanscan.DefaultPlaceholder, spans[3].Tags[0].VStr)
}

func TestDetectFileFormat(t *testing.T) {
	assert.Equal(t, FormatParquet, DetectFileFormat("spans.parquet"))
	assert.Equal(t, FormatParquet, DetectFileFormat("SPANS.PARQUET"))
	assert.Equal(t, FormatJSON, DetectFileFormat("spans.jsonl"))
	assert.Equal(t, FormatJSON, DetectFileFormat("spans"))
}
