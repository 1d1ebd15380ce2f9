// Package writer implements the per-extract output sink: an OSM XML
// stream written incrementally, one element at a time, so memory stays
// bounded regardless of extract size. paulmach/osm/osmpbf's public
// surface only exposes a decoder, so XML — not PBF — is the output
// format; see DESIGN.md.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wegman-software/osm-splitter/internal/osmdata"
)

// Sink is the OSM output target a strategy writes selected (or, for
// Hardcut, synthesized) objects into.
type Sink interface {
	WriteNode(*osmdata.Node) error
	WriteWay(*osmdata.Way) error
	WriteRelation(*osmdata.Relation) error
	Close() error
}

// XMLWriter streams nodes, ways and relations as OSM XML
// (https://wiki.openstreetmap.org/wiki/OSM_XML) to an underlying file.
type XMLWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// NewXMLWriter creates path and writes the OSM XML header. Close must
// be called to write the closing tag and flush the buffer.
func NewXMLWriter(path string) (*XMLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create extract output %s: %w", path, err)
	}
	w := &XMLWriter{file: f, buf: bufio.NewWriterSize(f, 64*1024)}
	if _, err := io.WriteString(w.buf, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
		`<osm version="0.6" generator="osm-splitter">`+"\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("write osm xml header: %w", err)
	}
	return w, nil
}

var attrEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`"`, "&quot;",
	`<`, "&lt;",
	`>`, "&gt;",
)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// metaAttrs renders the version.06 metadata attributes shared by
// nodes, ways and relations: visible, timestamp, changeset, uid, user.
// A zero Timestamp means the source object never carried one (e.g. an
// object read from a file with no metadata at all); omit it rather
// than writing the Unix epoch.
func metaAttrs(m osmdata.Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, " visible=\"%t\"", m.Visible)
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(&b, " timestamp=\"%s\"", m.Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, " changeset=\"%d\" uid=\"%d\" user=\"%s\"", m.Changeset, m.UID, escapeAttr(m.User))
	return b.String()
}

func (w *XMLWriter) writeTags(tags osmdata.Tags) error {
	for _, tag := range tags {
		if _, err := fmt.Fprintf(w.buf, "  <tag k=\"%s\" v=\"%s\"/>\n", escapeAttr(tag.Key), escapeAttr(tag.Value)); err != nil {
			return err
		}
	}
	return nil
}

// WriteNode implements Sink.
func (w *XMLWriter) WriteNode(n *osmdata.Node) error {
	if len(n.Tags) == 0 {
		if _, err := fmt.Fprintf(w.buf, "<node id=\"%d\" version=\"%d\" lat=\"%.7f\" lon=\"%.7f\"%s/>\n",
			n.ID, n.Version, n.Lat, n.Lon, metaAttrs(n.Meta)); err != nil {
			return fmt.Errorf("write node %d: %w", n.ID, err)
		}
		return nil
	}
	if _, err := fmt.Fprintf(w.buf, "<node id=\"%d\" version=\"%d\" lat=\"%.7f\" lon=\"%.7f\"%s>\n",
		n.ID, n.Version, n.Lat, n.Lon, metaAttrs(n.Meta)); err != nil {
		return fmt.Errorf("write node %d: %w", n.ID, err)
	}
	if err := w.writeTags(n.Tags); err != nil {
		return fmt.Errorf("write node %d tags: %w", n.ID, err)
	}
	if _, err := io.WriteString(w.buf, "</node>\n"); err != nil {
		return fmt.Errorf("close node %d: %w", n.ID, err)
	}
	return nil
}

// WriteWay implements Sink.
func (w *XMLWriter) WriteWay(wy *osmdata.Way) error {
	if _, err := fmt.Fprintf(w.buf, "<way id=\"%d\" version=\"%d\"%s>\n", wy.ID, wy.Version, metaAttrs(wy.Meta)); err != nil {
		return fmt.Errorf("write way %d: %w", wy.ID, err)
	}
	for _, ref := range wy.Nodes {
		if _, err := fmt.Fprintf(w.buf, "  <nd ref=\"%d\"/>\n", ref); err != nil {
			return fmt.Errorf("write way %d node ref: %w", wy.ID, err)
		}
	}
	if err := w.writeTags(wy.Tags); err != nil {
		return fmt.Errorf("write way %d tags: %w", wy.ID, err)
	}
	if _, err := io.WriteString(w.buf, "</way>\n"); err != nil {
		return fmt.Errorf("close way %d: %w", wy.ID, err)
	}
	return nil
}

func memberTypeAttr(t osmdata.MemberType) string {
	switch t {
	case osmdata.MemberNode:
		return "node"
	case osmdata.MemberWay:
		return "way"
	case osmdata.MemberRelation:
		return "relation"
	default:
		return "node"
	}
}

// WriteRelation implements Sink.
func (w *XMLWriter) WriteRelation(r *osmdata.Relation) error {
	if _, err := fmt.Fprintf(w.buf, "<relation id=\"%d\" version=\"%d\"%s>\n", r.ID, r.Version, metaAttrs(r.Meta)); err != nil {
		return fmt.Errorf("write relation %d: %w", r.ID, err)
	}
	for _, m := range r.Members {
		if _, err := fmt.Fprintf(w.buf, "  <member type=\"%s\" ref=\"%d\" role=\"%s\"/>\n",
			memberTypeAttr(m.Type), m.Ref, escapeAttr(m.Role)); err != nil {
			return fmt.Errorf("write relation %d member: %w", r.ID, err)
		}
	}
	if err := w.writeTags(r.Tags); err != nil {
		return fmt.Errorf("write relation %d tags: %w", r.ID, err)
	}
	if _, err := io.WriteString(w.buf, "</relation>\n"); err != nil {
		return fmt.Errorf("close relation %d: %w", r.ID, err)
	}
	return nil
}

// Close writes the closing tag, flushes the buffer and closes the file.
func (w *XMLWriter) Close() error {
	if _, err := io.WriteString(w.buf, "</osm>\n"); err != nil {
		return fmt.Errorf("write osm xml footer: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush extract output: %w", err)
	}
	return w.file.Close()
}
