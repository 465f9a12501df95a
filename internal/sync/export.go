package sync

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/cms/internal/model"
)

// ConfigSource lists the persisted project config records.
type ConfigSource interface {
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string         `json:"version"`
	Type        string         `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ConfigCount int            `json:"config_count"`
	Namespaces  map[string]int `json:"namespaces,omitempty"`
	Digest      string         `json:"digest"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ExportJSONL writes every config record as JSONL to w, sorted by key, after
// a header line that counts records per namespace. The header's digest
// covers the record lines only, so two exports of the same records share a
// digest.
func ExportJSONL(ctx context.Context, s ConfigSource, w io.Writer) error {
	configs, err := s.ListAllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Key < configs[j].Key
	})

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	namespaces := make(map[string]int)
	for _, c := range configs {
		ns, _ := model.SplitConfigKey(c.Key)
		namespaces[ns]++

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode config %s: %w", c.Key, err)
		}
		if err := enc.Encode(record{Type: "config", Data: data}); err != nil {
			return fmt.Errorf("encode config %s: %w", c.Key, err)
		}
	}
	sum := sha256.Sum256(body.Bytes())

	hdr, err := json.Marshal(header{
		Version:     "1",
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		ConfigCount: len(configs),
		Namespaces:  namespaces,
		Digest:      hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := w.Write(append(hdr, '\n')); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("write configs: %w", err)
	}
	return nil
}

// ExportDigest returns the digest recorded in the header line of an export,
// or "" when data does not start with one.
func ExportDigest(data []byte) string {
	first, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(first, &h); err != nil || h.Type != "header" {
		return ""
	}
	return h.Digest
}

// ReadJSONL parses an export written by ExportJSONL and returns its config
// records. Lines of other types are skipped.
func ReadJSONL(r io.Reader) ([]*model.Config, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var configs []*model.Config
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Type != "config" {
			continue
		}
		var c model.Config
		if err := json.Unmarshal(rec.Data, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		configs = append(configs, &c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return configs, nil
}
