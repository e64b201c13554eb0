package spanscan

// TagType is the declared type of a tag value
type TagType string

const (
	TagTypeString TagType = "string"
	TagTypeBool   TagType = "bool"
	TagTypeLong   TagType = "long"
	TagTypeDouble TagType = "double"
	TagTypeBinary TagType = "binary"
)

// Span is an already-decoded tracing span
type Span struct {
	TraceID       string `json:"traceId" parquet:"trace_id"`
	SpanID        string `json:"spanId" parquet:"span_id"`
	ParentSpanID  string `json:"parentSpanId,omitempty" parquet:"parent_span_id,optional"`
	ServiceName   string `json:"serviceName" parquet:"service_name"`
	OperationName string `json:"operationName" parquet:"operation_name"`
	StartTime     int64  `json:"startTime" parquet:"start_time"`
	Duration      int64  `json:"duration" parquet:"duration"`
	Tags          []Tag  `json:"tags,omitempty" parquet:"tags,list"`
	Logs          []Log  `json:"logs,omitempty" parquet:"logs,list"`
}

// Tag is a typed key/value pair on a span or a log entry
type Tag struct {
	Key     string  `json:"key" parquet:"key"`
	Type    TagType `json:"type,omitempty" parquet:"type,optional"`
	VStr    string  `json:"vStr,omitempty" parquet:"v_str,optional"`
	VLong   int64   `json:"vLong,omitempty" parquet:"v_long,optional"`
	VDouble float64 `json:"vDouble,omitempty" parquet:"v_double,optional"`
	VBool   bool    `json:"vBool,omitempty" parquet:"v_bool,optional"`
	VBytes  []byte  `json:"vBytes,omitempty" parquet:"v_bytes,optional"`
}

// Log is a timestamped set of fields
type Log struct {
	Timestamp int64 `json:"timestamp" parquet:"timestamp"`
	Fields    []Tag `json:"fields,omitempty" parquet:"fields,list"`
}

// text returns the value that is scanned for a tag: the string value, or
// the bytes decoded as text when there is no string value
func (t Tag) text() (string, bool) {
	if t.VStr != "" {
		return t.VStr, true
	}
	if len(t.VBytes) > 0 {
		return string(t.VBytes), true
	}
	return "", false
}

// clone returns a deep copy of the span
func (s *Span) clone() *Span {
	c := *s
	c.Tags = cloneTags(s.Tags)
	if s.Logs != nil {
		c.Logs = make([]Log, len(s.Logs))
		for i, l := range s.Logs {
			c.Logs[i] = Log{Timestamp: l.Timestamp, Fields: cloneTags(l.Fields)}
		}
	}
	return &c
}

func cloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	c := make([]Tag, len(tags))
	for i, t := range tags {
		c[i] = t
		if t.VBytes != nil {
			c[i].VBytes = append([]byte(nil), t.VBytes...)
		}
	}
	return c
}
