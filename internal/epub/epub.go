// file: internal/epub/epub.go
// version: 1.0.0
// guid: 5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d

package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jdfalk/epub-enricher/internal/isbn"
	"github.com/jdfalk/epub-enricher/internal/matcher"
	"github.com/jdfalk/epub-enricher/internal/models"
)

const dcNamespace = "http://purl.org/dc/elements/1.1/"

// entry is one file inside the EPUB zip, held in memory in archive order.
type entry struct {
	name string
	data []byte
}

// Book is an EPUB opened for metadata reading and updating. The zip is held
// in memory; Save writes the whole container back out.
type Book struct {
	path    string
	entries []entry
	opfPath string
	meta    opfMetadata
	dirty   bool
}

type containerXML struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// dcItem is a Dublin Core element with its attributes preserved, so scheme
// and id survive a rewrite.
type dcItem struct {
	Value string     `xml:",chardata"`
	Attrs []xml.Attr `xml:",any,attr"`
}

func (d dcItem) attr(local string) string {
	for _, a := range d.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type metaItem struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfMetadata struct {
	Titles       []dcItem   `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []dcItem   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Publishers   []dcItem   `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Dates        []dcItem   `xml:"http://purl.org/dc/elements/1.1/ date"`
	Languages    []dcItem   `xml:"http://purl.org/dc/elements/1.1/ language"`
	Descriptions []dcItem   `xml:"http://purl.org/dc/elements/1.1/ description"`
	Identifiers  []dcItem   `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Subjects     []dcItem   `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Metas        []metaItem `xml:"meta"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfDoc struct {
	Metadata opfMetadata       `xml:"metadata"`
	Manifest []opfManifestItem `xml:"manifest>item"`
}

// Open reads an EPUB container and parses its OPF metadata.
func Open(filePath string) (*Book, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub %s: %w", filePath, err)
	}
	defer reader.Close()

	book := &Book{path: filePath}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in %s: %w", f.Name, filePath, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in %s: %w", f.Name, filePath, err)
		}
		book.entries = append(book.entries, entry{name: f.Name, data: data})
	}

	if err := book.locateOPF(); err != nil {
		return nil, err
	}
	var doc opfDoc
	if err := xml.Unmarshal(book.entry(book.opfPath), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse opf in %s: %w", filePath, err)
	}
	book.meta = doc.Metadata
	return book, nil
}

func (b *Book) locateOPF() error {
	data := b.entry("META-INF/container.xml")
	if data == nil {
		return fmt.Errorf("%s: missing META-INF/container.xml", b.path)
	}
	var container containerXML
	if err := xml.Unmarshal(data, &container); err != nil {
		return fmt.Errorf("%s: bad container.xml: %w", b.path, err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return fmt.Errorf("%s: container.xml names no rootfile", b.path)
	}
	b.opfPath = container.Rootfiles[0].FullPath
	if b.entry(b.opfPath) == nil {
		return fmt.Errorf("%s: rootfile %s not in archive", b.path, b.opfPath)
	}
	return nil
}

func (b *Book) entry(name string) []byte {
	for i := range b.entries {
		if b.entries[i].name == name {
			return b.entries[i].data
		}
	}
	return nil
}

func (b *Book) setEntry(name string, data []byte) {
	for i := range b.entries {
		if b.entries[i].name == name {
			b.entries[i].data = data
			return
		}
	}
	b.entries = append(b.entries, entry{name: name, data: data})
}

// Filename returns the base name of the container on disk.
func (b *Book) Filename() string {
	return filepath.Base(b.path)
}

// Metadata extracts the curated local record. ISBN resolution falls back
// from identifier scheme attributes to identifier shape to the file name;
// series falls back from calibre metadata to filename heuristics.
func (b *Book) Metadata() *models.LocalBook {
	local := &models.LocalBook{Filename: b.Filename()}

	if len(b.meta.Titles) > 0 {
		local.Title = strings.TrimSpace(b.meta.Titles[0].Value)
	}
	if len(b.meta.Creators) > 0 {
		local.Author = strings.TrimSpace(b.meta.Creators[0].Value)
	}
	if len(b.meta.Publishers) > 0 {
		local.Publisher = strings.TrimSpace(b.meta.Publishers[0].Value)
	}
	if len(b.meta.Dates) > 0 {
		local.Date = strings.TrimSpace(b.meta.Dates[0].Value)
	}
	if len(b.meta.Languages) > 0 {
		local.Language = strings.TrimSpace(b.meta.Languages[0].Value)
	}
	for _, s := range b.meta.Subjects {
		if v := strings.TrimSpace(s.Value); v != "" {
			local.Tags = append(local.Tags, v)
		}
	}

	local.ISBN = b.findISBN()

	for _, m := range b.meta.Metas {
		switch m.Name {
		case "calibre:series":
			local.Series = m.Content
		case "calibre:series_index":
			if idx, err := strconv.ParseFloat(m.Content, 64); err == nil {
				local.SeriesIndex = idx
				local.HasSeriesIndex = true
			}
		}
	}
	if local.Series == "" {
		if series, pos := matcher.IdentifySeries(local.Title, b.path); series != "" {
			local.Series = series
			if pos > 0 {
				local.SeriesIndex = float64(pos)
				local.HasSeriesIndex = true
			}
		}
	}
	return local
}

func (b *Book) findISBN() string {
	// Scheme-tagged identifiers win, then anything shaped like an ISBN.
	for _, id := range b.meta.Identifiers {
		if strings.Contains(strings.ToLower(id.attr("scheme")), "isbn") {
			if v := isbn.Clean(id.Value); len(v) == 10 || len(v) == 13 {
				return v
			}
		}
	}
	for _, id := range b.meta.Identifiers {
		v := isbn.Clean(id.Value)
		if (len(v) == 10 || len(v) == 13) && isbn.IsValid(v) {
			return v
		}
	}
	return isbn.FromFilename(b.Filename())
}

// RawItem is one OPF metadata element for diagnostics output.
type RawItem struct {
	Name  string
	Value string
	Attrs map[string]string
}

// RawMetadata lists every metadata element as read from the OPF.
func (b *Book) RawMetadata() []RawItem {
	var items []RawItem
	add := func(name string, list []dcItem) {
		for _, d := range list {
			attrs := map[string]string{}
			for _, a := range d.Attrs {
				attrs[a.Name.Local] = a.Value
			}
			items = append(items, RawItem{Name: name, Value: d.Value, Attrs: attrs})
		}
	}
	add("DC:title", b.meta.Titles)
	add("DC:creator", b.meta.Creators)
	add("DC:publisher", b.meta.Publishers)
	add("DC:date", b.meta.Dates)
	add("DC:language", b.meta.Languages)
	add("DC:description", b.meta.Descriptions)
	add("DC:identifier", b.meta.Identifiers)
	add("DC:subject", b.meta.Subjects)
	for _, m := range b.meta.Metas {
		name := m.Name
		if name == "" {
			name = m.Property
		}
		value := m.Content
		if value == "" {
			value = strings.TrimSpace(m.Value)
		}
		items = append(items, RawItem{Name: "meta:" + name, Value: value, Attrs: map[string]string{}})
	}
	return items
}

// SetTitle replaces the title.
func (b *Book) SetTitle(title string) {
	b.meta.Titles = []dcItem{{Value: title}}
	b.dirty = true
}

// SetAuthors replaces every creator entry.
func (b *Book) SetAuthors(authors []string) {
	b.meta.Creators = nil
	for _, a := range authors {
		b.meta.Creators = append(b.meta.Creators, dcItem{Value: a})
	}
	b.dirty = true
}

// SetPublisher replaces the publisher.
func (b *Book) SetPublisher(publisher string) {
	b.meta.Publishers = []dcItem{{Value: publisher}}
	b.dirty = true
}

// SetDate replaces the publication date.
func (b *Book) SetDate(date string) {
	b.meta.Dates = []dcItem{{Value: date}}
	b.dirty = true
}

// SetLanguage replaces the language.
func (b *Book) SetLanguage(lang string) {
	b.meta.Languages = []dcItem{{Value: lang}}
	b.dirty = true
}

// SetDescription replaces the description.
func (b *Book) SetDescription(desc string) {
	b.meta.Descriptions = []dcItem{{Value: desc}}
	b.dirty = true
}

// SetSubjects replaces the subject list.
func (b *Book) SetSubjects(subjects []string) {
	b.meta.Subjects = nil
	for _, s := range subjects {
		b.meta.Subjects = append(b.meta.Subjects, dcItem{Value: s})
	}
	b.dirty = true
}

// SetCover replaces the bytes of the book's existing cover image. Books
// without any cover item get a new cover.jpg next to the OPF plus the meta
// reference readers look for.
func (b *Book) SetCover(imageData []byte) {
	if len(imageData) == 0 {
		return
	}
	if coverPath := b.coverPath(); coverPath != "" {
		b.setEntry(coverPath, imageData)
		b.dirty = true
		return
	}
	coverName := path.Join(path.Dir(b.opfPath), "cover.jpg")
	coverName = strings.TrimPrefix(coverName, "./")
	b.setEntry(coverName, imageData)
	b.meta.Metas = append(b.meta.Metas, metaItem{Name: "cover", Content: "cover-image"})
	b.dirty = true
}

// coverPath resolves the archive path of the current cover image, via the
// cover-image manifest property or the meta name="cover" reference.
func (b *Book) coverPath() string {
	var doc opfDoc
	if err := xml.Unmarshal(b.entry(b.opfPath), &doc); err != nil {
		return ""
	}
	coverID := ""
	for _, m := range b.meta.Metas {
		if m.Name == "cover" {
			coverID = m.Content
		}
	}
	opfDir := path.Dir(b.opfPath)
	for _, item := range doc.Manifest {
		if strings.Contains(item.Properties, "cover-image") || (coverID != "" && item.ID == coverID) {
			full := path.Join(opfDir, item.Href)
			full = strings.TrimPrefix(full, "./")
			if b.entry(full) != nil {
				return full
			}
		}
	}
	return ""
}

// Save writes the container to outputPath, or in place when outputPath is
// empty. The mimetype entry is written first and uncompressed, as the
// EPUB OCF container format requires.
func (b *Book) Save(outputPath string) error {
	if outputPath == "" {
		outputPath = b.path
	}
	if b.dirty {
		if err := b.rewriteOPF(); err != nil {
			return err
		}
		b.dirty = false
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	writeEntry := func(e entry, method uint16) error {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			return err
		}
		_, err = fw.Write(e.data)
		return err
	}

	if data := b.entry("mimetype"); data != nil {
		if err := writeEntry(entry{name: "mimetype", data: data}, zip.Store); err != nil {
			return fmt.Errorf("failed to write mimetype: %w", err)
		}
	}
	for _, e := range b.entries {
		if e.name == "mimetype" {
			continue
		}
		if err := writeEntry(e, zip.Deflate); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize epub: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save epub: %w", err)
	}
	b.path = outputPath
	return nil
}

// rewriteOPF splices a regenerated metadata block into the original OPF,
// leaving manifest and spine untouched.
func (b *Book) rewriteOPF() error {
	opf := string(b.entry(b.opfPath))
	start, end := metadataSpan(opf)
	if start < 0 {
		return fmt.Errorf("%s: no metadata element in %s", b.path, b.opfPath)
	}
	b.setEntry(b.opfPath, []byte(opf[:start]+b.renderMetadata()+opf[end:]))
	return nil
}

// metadataSpan locates the metadata element, with or without an opf: prefix.
func metadataSpan(opf string) (int, int) {
	for _, tag := range []string{"metadata", "opf:metadata"} {
		start := strings.Index(opf, "<"+tag)
		if start < 0 {
			continue
		}
		closing := "</" + tag + ">"
		end := strings.Index(opf[start:], closing)
		if end < 0 {
			return -1, -1
		}
		return start, start + end + len(closing)
	}
	return -1, -1
}

func (b *Book) renderMetadata() string {
	var sb strings.Builder
	sb.WriteString(`<metadata xmlns:dc="` + dcNamespace + `" xmlns:opf="http://www.idpf.org/2007/opf">` + "\n")

	writeDC := func(tag string, items []dcItem) {
		for _, item := range items {
			sb.WriteString("    <dc:" + tag)
			for _, a := range item.Attrs {
				name := a.Name.Local
				// id stays bare; everything else came from the opf namespace.
				if name != "id" {
					name = "opf:" + name
				}
				sb.WriteString(fmt.Sprintf(" %s=%q", name, xmlEscape(a.Value)))
			}
			sb.WriteString(">" + xmlEscape(item.Value) + "</dc:" + tag + ">\n")
		}
	}
	writeDC("title", b.meta.Titles)
	writeDC("creator", b.meta.Creators)
	writeDC("publisher", b.meta.Publishers)
	writeDC("date", b.meta.Dates)
	writeDC("language", b.meta.Languages)
	writeDC("description", b.meta.Descriptions)
	writeDC("identifier", b.meta.Identifiers)
	writeDC("subject", b.meta.Subjects)

	for _, m := range b.meta.Metas {
		switch {
		case m.Name != "":
			sb.WriteString(fmt.Sprintf("    <meta name=%q content=%q/>\n", xmlEscape(m.Name), xmlEscape(m.Content)))
		case m.Property != "":
			sb.WriteString(fmt.Sprintf("    <meta property=%q>%s</meta>\n", xmlEscape(m.Property), xmlEscape(strings.TrimSpace(m.Value))))
		}
	}
	sb.WriteString("  </metadata>")
	return sb.String()
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
