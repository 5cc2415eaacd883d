// Package logcat turns device log files into ordered LogRecords.
package logcat

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/nanotel/internal/model"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
)

var ErrUnknownFormat = errors.New("unknown log format")

// Format selects how lines are parsed.
type Format int

const (
	FormatAuto Format = iota
	FormatThreadtime
	FormatJSON
)

// ParseFormat resolves a format by name. The empty string is auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "threadtime", "logcat":
		return FormatThreadtime, nil
	case "json", "jsonl":
		return FormatJSON, nil
	}
	return FormatAuto, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Options controls parsing.
type Options struct {
	Format Format
	// Year completes threadtime timestamps, which carry none. Zero means the
	// current year.
	Year int
	// Location is the device timezone. Nil means UTC.
	Location *time.Location
}

func (o Options) year() int {
	if o.Year > 0 {
		return o.Year
	}
	return time.Now().Year()
}

func (o Options) loc() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.UTC
}

// maxLine bounds a single log line; bugreports carry some very long ones.
const maxLine = 4 * 1024 * 1024

var (
	// 01-02 15:04:05.000  1234  5678 D RILJ    : [0087]> SETUP_DATA_CALL ...
	threadtime = regexp.MustCompile(`^(?:(\d{4})-)?(\d{2})-(\d{2})\s+(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s+\d+\s+\d+\s+[VDIWEFSA]\s+(.*)$`)
	// RIL serial markers: [0087]> and [0087]<
	rilSerial = regexp.MustCompile(`\[(\d{4,})\]\s*[<>]`)
)

// Open reads a log file. Files ending in .gz or .zst are decompressed.
func Open(path string, opts Options) ([]model.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	recs, err := Read(r, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return recs, nil
}

// Read parses every record from r and returns them sorted by timestamp. Records
// that share a timestamp keep their input order.
func Read(r io.Reader, opts Options) ([]model.LogRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		recs   []model.LogRecord
		format = opts.Format
		parser fastjson.Parser
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if format == FormatAuto {
			format = sniff(line)
		}

		switch format {
		case FormatJSON:
			v, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			rec, err := recordFromJSON(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			recs = append(recs, rec)

		default:
			if strings.HasPrefix(line, "--------- ") {
				continue
			}
			rec, ok := ParseLine(line, opts)
			if ok {
				recs = append(recs, rec)
				continue
			}
			// A line without a header continues the previous record.
			if n := len(recs); n > 0 {
				recs[n-1].Text += "\n" + line
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sortStable(recs)
	return recs, nil
}

func sniff(line string) Format {
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		return FormatJSON
	}
	return FormatThreadtime
}

// ParseLine parses one threadtime line. The record text is everything after the
// priority letter, i.e. the tag and the message.
func ParseLine(line string, opts Options) (model.LogRecord, bool) {
	m := threadtime.FindStringSubmatch(line)
	if m == nil {
		return model.LogRecord{}, false
	}
	year := opts.year()
	if m[1] != "" {
		year, _ = strconv.Atoi(m[1])
	}
	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	ts := time.Date(year, time.Month(num(m[2])), num(m[3]),
		num(m[4]), num(m[5]), num(m[6]), num(m[7])*int(time.Millisecond), opts.loc())

	text := m[8]
	rec := model.LogRecord{Timestamp: ts, Text: text}
	if id := rilSerial.FindStringSubmatch(text); id != nil {
		rec.MessageID = id[1]
	}
	return rec, true
}

// DecodeJSON parses a JSON array of records or newline-delimited JSON objects.
func DecodeJSON(p *fastjson.Parser, data []byte) ([]model.LogRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var recs []model.LogRecord
	if data[0] == '[' {
		v, err := p.ParseBytes(data)
		if err != nil {
			return nil, err
		}
		arr, err := v.Array()
		if err != nil {
			return nil, err
		}
		for i, item := range arr {
			rec, err := recordFromJSON(item)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			recs = append(recs, rec)
		}
	} else {
		for i, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			v, err := p.ParseBytes(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			rec, err := recordFromJSON(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			recs = append(recs, rec)
		}
	}
	sortStable(recs)
	return recs, nil
}

// recordFromJSON accepts {"timestamp": RFC3339 string | epoch ms, "text": ..., "message_id": ...}.
func recordFromJSON(v *fastjson.Value) (model.LogRecord, error) {
	var rec model.LogRecord

	ts := v.Get("timestamp")
	if ts == nil {
		return rec, errors.New("missing timestamp")
	}
	switch ts.Type() {
	case fastjson.TypeString:
		t, err := time.Parse(time.RFC3339Nano, string(ts.GetStringBytes()))
		if err != nil {
			return rec, fmt.Errorf("timestamp: %w", err)
		}
		rec.Timestamp = t
	case fastjson.TypeNumber:
		ms, err := ts.Int64()
		if err != nil {
			return rec, fmt.Errorf("timestamp: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ms).UTC()
	default:
		return rec, fmt.Errorf("timestamp: unexpected %s", ts.Type())
	}

	rec.Text = string(v.GetStringBytes("text"))
	if id := v.Get("message_id"); id != nil {
		switch id.Type() {
		case fastjson.TypeString:
			rec.MessageID = string(id.GetStringBytes())
		case fastjson.TypeNumber:
			rec.MessageID = id.String()
		}
	}
	return rec, nil
}

func sortStable(recs []model.LogRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
}
