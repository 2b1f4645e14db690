package extract

import (
	"encoding/xml"
	"strings"
)

// Metadata keys shared by all formats. Keys are case-insensitive downstream.
const (
	MetaTitle       = "Title"
	MetaAuthor      = "Author"
	MetaSubject     = "Subject"
	MetaKeywords    = "Keywords"
	MetaDescription = "Description"
	MetaCreator     = "Creator"
	MetaProducer    = "Producer"
)

// ooxmlCoreProps is docProps/core.xml. Tags match on local name only.
type ooxmlCoreProps struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Creator     string `xml:"creator"`
	Keywords    string `xml:"keywords"`
	Description string `xml:"description"`
}

const ooxmlCorePath = "docProps/core.xml"

// ooxmlMetadata reads core properties. A missing or malformed part yields no metadata.
func ooxmlMetadata(a *archive) map[string]string {
	raw, err := a.read(ooxmlCorePath)
	if err != nil || raw == nil {
		return nil
	}
	var p ooxmlCoreProps
	if err := xml.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return compact(map[string]string{
		MetaTitle:       p.Title,
		MetaSubject:     p.Subject,
		MetaAuthor:      p.Creator,
		MetaKeywords:    p.Keywords,
		MetaDescription: p.Description,
	})
}

type odfMeta struct {
	Meta struct {
		Title          string   `xml:"title"`
		Subject        string   `xml:"subject"`
		Description    string   `xml:"description"`
		Creator        string   `xml:"creator"`
		InitialCreator string   `xml:"initial-creator"`
		Keywords       []string `xml:"keyword"`
		Generator      string   `xml:"generator"`
	} `xml:"meta"`
}

const odfMetaPath = "meta.xml"

func odfMetadata(a *archive) map[string]string {
	raw, err := a.read(odfMetaPath)
	if err != nil || raw == nil {
		return nil
	}
	var m odfMeta
	if err := xml.Unmarshal(raw, &m); err != nil {
		return nil
	}
	author := m.Meta.InitialCreator
	if author == "" {
		author = m.Meta.Creator
	}
	return compact(map[string]string{
		MetaTitle:       m.Meta.Title,
		MetaSubject:     m.Meta.Subject,
		MetaDescription: m.Meta.Description,
		MetaAuthor:      author,
		MetaKeywords:    strings.Join(m.Meta.Keywords, ", "),
		MetaProducer:    m.Meta.Generator,
	})
}

// compact drops blank values.
func compact(m map[string]string) map[string]string {
	for k, v := range m {
		v = strings.TrimSpace(v)
		if v == "" {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	return m
}
