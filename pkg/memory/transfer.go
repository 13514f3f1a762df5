package memory

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
)

// Transfer formats
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// Record is one memory in an export file
type Record struct {
	Title       string            `json:"title" jsonschema:"required,maxLength=500"`
	Content     string            `json:"content" jsonschema:"required,description=Markdown body"`
	Summary     string            `json:"summary,omitempty"`
	MemoryType  model.MemoryType  `json:"memory_type,omitempty" jsonschema:"enum=fact,enum=observation,enum=procedure,enum=experience,enum=insight"`
	Category    string            `json:"category,omitempty"`
	Source      string            `json:"source,omitempty"`
	Importance  *float64          `json:"importance,omitempty" jsonschema:"minimum=0,maximum=1"`
	Confidence  *float64          `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1"`
	AccessLevel model.AccessLevel `json:"access_level,omitempty" jsonschema:"enum=public,enum=internal,enum=private,enum=restricted"`
	Tags        []string          `json:"tags,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

var csvHeader = []string{
	"title", "content", "summary", "memory_type", "category", "source",
	"importance", "confidence", "access_level", "tags", "expires_at",
}

// ImportResult reports what an import did. Errors are keyed by record
// number, starting at 1.
type ImportResult struct {
	Created int            `json:"created"`
	Failed  int            `json:"failed"`
	Errors  map[int]string `json:"errors,omitempty"`
}

// Schema returns the JSON schema of an export record
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&Record{})
	s.Title = "Hasad memory record"
	return json.MarshalIndent(s, "", "  ")
}

func recordOf(m *model.Memory) Record {
	importance, confidence := m.Importance, m.Confidence
	return Record{
		Title:       m.Title,
		Content:     m.Content,
		Summary:     m.Summary,
		MemoryType:  m.MemoryType,
		Category:    m.Category,
		Source:      m.Source,
		Importance:  &importance,
		Confidence:  &confidence,
		AccessLevel: m.AccessLevel,
		Tags:        m.TagNames(),
		ExpiresAt:   m.ExpiresAt,
	}
}

func (r Record) input() CreateInput {
	return CreateInput{
		Title:       r.Title,
		Content:     r.Content,
		Summary:     r.Summary,
		MemoryType:  r.MemoryType,
		Category:    r.Category,
		Source:      r.Source,
		Importance:  r.Importance,
		Confidence:  r.Confidence,
		AccessLevel: r.AccessLevel,
		Tags:        r.Tags,
		ExpiresAt:   r.ExpiresAt,
	}
}

// Export writes every memory id can read and that matches f to w. It
// pages through the store so the whole set is never held in memory.
func (s *Service) Export(ctx context.Context, id *identity.Identity, w io.Writer, format string, f ListFilter) (int, error) {
	var write func(Record) error
	var flush func() error

	switch format {
	case FormatJSONL, "":
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		write = func(r Record) error { return enc.Encode(r) }
		flush = bw.Flush
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return 0, err
		}
		write = func(r Record) error { return cw.Write(csvRow(r)) }
		flush = func() error {
			cw.Flush()
			return cw.Error()
		}
	default:
		return 0, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}

	page := s.cfg.APIListLimitMax
	f.Limit = page
	f.Offset = 0
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		memories, err := s.ListMemories(ctx, id, f)
		if err != nil {
			return n, err
		}
		for i := range memories {
			if err := write(recordOf(&memories[i])); err != nil {
				return n, err
			}
			n++
		}
		if len(memories) < page {
			break
		}
		f.Offset += page
	}
	return n, flush()
}

// Import creates a memory owned by id for every record read from r. A bad
// record is reported in the result and does not stop the import.
func (s *Service) Import(ctx context.Context, id *identity.Identity, r io.Reader, format string) (*ImportResult, error) {
	if !canCreate(id) {
		return nil, ErrForbidden
	}
	res := &ImportResult{Errors: map[int]string{}}
	create := func(n int, rec Record) {
		if _, err := s.CreateMemory(ctx, id, rec.input()); err != nil {
			res.Failed++
			res.Errors[n] = err.Error()
			return
		}
		res.Created++
	}

	switch format {
	case FormatJSONL, "":
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		n := 0
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			n++
			if err := ctx.Err(); err != nil {
				return res, err
			}
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				res.Failed++
				res.Errors[n] = fmt.Sprintf("invalid json: %v", err)
				continue
			}
			create(n, rec)
		}
		if err := sc.Err(); err != nil {
			return res, err
		}
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		cols := make(map[string]int, len(header))
		for i, h := range header {
			cols[strings.ToLower(strings.TrimSpace(h))] = i
		}
		if _, ok := cols["title"]; !ok {
			return nil, fmt.Errorf("%w: csv header has no title column", ErrInvalidInput)
		}
		for n := 1; ; n++ {
			row, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err != nil {
				res.Failed++
				res.Errors[n] = err.Error()
				continue
			}
			rec, err := csvRecord(cols, row)
			if err != nil {
				res.Failed++
				res.Errors[n] = err.Error()
				continue
			}
			create(n, rec)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}
	return res, nil
}

func csvRow(r Record) []string {
	row := []string{
		r.Title, r.Content, r.Summary, string(r.MemoryType), r.Category, r.Source,
		"", "", string(r.AccessLevel), strings.Join(r.Tags, "|"), "",
	}
	if r.Importance != nil {
		row[6] = strconv.FormatFloat(*r.Importance, 'f', -1, 64)
	}
	if r.Confidence != nil {
		row[7] = strconv.FormatFloat(*r.Confidence, 'f', -1, 64)
	}
	if r.ExpiresAt != nil {
		row[10] = r.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return row
}

func csvRecord(cols map[string]int, row []string) (Record, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	float := func(name string) (*float64, error) {
		v := get(name)
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", name, v)
		}
		return &f, nil
	}

	rec := Record{
		Title:       get("title"),
		Content:     get("content"),
		Summary:     get("summary"),
		MemoryType:  model.MemoryType(get("memory_type")),
		Category:    get("category"),
		Source:      get("source"),
		AccessLevel: model.AccessLevel(get("access_level")),
	}
	var err error
	if rec.Importance, err = float("importance"); err != nil {
		return rec, err
	}
	if rec.Confidence, err = float("confidence"); err != nil {
		return rec, err
	}
	if tags := get("tags"); tags != "" {
		rec.Tags = strings.Split(tags, "|")
	}
	if v := get("expires_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return rec, fmt.Errorf("invalid expires_at %q", v)
		}
		rec.ExpiresAt = &t
	}
	return rec, nil
}
