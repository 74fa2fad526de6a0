// Package osmxml streams entity version records out of OSM XML
// history files (.osh/.osm), transparently decompressing gzip and
// bzip2 by sniffing the leading magic bytes
package osmxml

import (
	"bufio"
	"compress/bzip2"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"taghist/internal/core/osm"
	perr "taghist/internal/platform/errors"
	pstrings "taghist/internal/platform/strings"
)

// Reader pulls one element at a time from the XML stream.
// It does not reorder anything, the file is expected to already be
// sorted the way planet history extracts are
type Reader struct {
	dec     *xml.Decoder
	closers []io.Closer
}

// Open opens a history file, "-" or "" reads stdin
func Open(path string) (*Reader, error) {
	if path == "" || path == "-" {
		return NewReader(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeSource, "open input")
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader wraps an already open stream, sniffing compression
func NewReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(in, 1<<16)
	magic, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, perr.Wrap(err, perr.ErrorCodeSource, "sniff input")
	}

	var body io.Reader = br
	r := &Reader{}
	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeSource, "gzip input")
		}
		r.closers = append(r.closers, zr)
		body = zr
	case len(magic) >= 3 && magic[0] == 'B' && magic[1] == 'Z' && magic[2] == 'h':
		body = bzip2.NewReader(br)
	}

	r.dec = xml.NewDecoder(body)
	return r, nil
}

// Next implements the source port. io.EOF is the normal end of stream
func (r *Reader) Next(ctx context.Context) (*osm.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeSource, "decode xml")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "node", "way", "relation":
			return r.element(se)
		}
	}
}

func (r *Reader) element(se xml.StartElement) (*osm.Record, error) {
	kind, err := osm.ParseObjectType(se.Name.Local)
	if err != nil {
		return nil, err
	}
	rec := &osm.Record{Kind: kind}

	for _, a := range se.Attr {
		switch a.Name.Local {
		case "id":
			rec.ID, err = strconv.ParseInt(a.Value, 10, 64)
		case "version":
			rec.Version, err = strconv.ParseInt(a.Value, 10, 64)
		case "timestamp":
			rec.Timestamp, err = time.Parse(time.RFC3339, a.Value)
		case "user":
			// empty user attribute is treated as anonymous
			rec.User = pstrings.Ptr(a.Value)
		case "uid":
			var v uint64
			v, err = strconv.ParseUint(a.Value, 10, 64)
			rec.UID = &v
		case "changeset":
			var v uint64
			v, err = strconv.ParseUint(a.Value, 10, 64)
			rec.Changeset = &v
		}
		if err != nil {
			return nil, perr.Sourcef("%s attribute %s=%q: %v", se.Name.Local, a.Name.Local, a.Value, err)
		}
	}

	// walk children for tags until this element closes
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeSource, "decode xml element")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tag" {
				var k, v string
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "k":
						k = a.Value
					case "v":
						v = a.Value
					}
				}
				if rec.Tags == nil {
					rec.Tags = make(map[string]string)
				}
				rec.Tags[k] = v
			}
			if err := r.dec.Skip(); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeSource, "decode xml element")
			}
		case xml.EndElement:
			if t.Name.Local == se.Name.Local {
				return rec, nil
			}
		}
	}
}

// Close releases the underlying file and decompressor
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
