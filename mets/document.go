// Package mets parses METS/MODS XML packages into typed structures.
//
// All access to the XML goes through the typed accessor layer in this file;
// no caller ever issues path queries against raw XML. The accessors never
// fail on missing optional fields, they return zero values instead.
package mets

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/teranos/iiify/errors"
)

// XML namespaces used by METS/MODS packages from German library services
const (
	NamespaceMETS  = "http://www.loc.gov/METS/"
	NamespaceMODS  = "http://www.loc.gov/mods/v3"
	NamespaceDV    = "http://dfg-viewer.de/"
	NamespaceXlink = "http://www.w3.org/1999/xlink"
)

// File is a physical image file referenced by the METS fileSec.
// Width/Height are zero until filled from storage or a remote probe.
type File struct {
	ID       string
	URL      string
	MIMEType string
	Width    int
	Height   int
}

// Page is one entry of the physical structMap with its resolved files.
type Page struct {
	ID    string
	Label string
	Order int
	Files []*File
}

// TocEntry is one node of the logical structMap tree.
type TocEntry struct {
	LogicalID   string
	Label       string
	Type        string
	PhysicalIDs []string
	Children    []TocEntry
}

// Attribution identifies the institution owning the digitized material.
type Attribution struct {
	Owner   string
	SiteURL string
	Logo    string
}

// Metadata is the descriptive metadata extracted from the first dmdSec.
type Metadata struct {
	Title            string
	Creators         []string
	PublicationPlace string
	PublicationDate  string
	Publisher        string
	Language         string
	Genre            string
	Description      string
	License          string
	Attribution      Attribution
	Related          string
	PDFDownloadURL   string
	Identifiers      map[string]string
}

// Document is a parsed METS package.
type Document struct {
	root      metsRoot
	files     []*File
	filesByID map[string]*File
}

// ParseDocument parses raw METS XML. It fails with ErrMalformedDocument
// when the payload is not well-formed XML or the root element is not in
// the METS namespace.
func ParseDocument(data []byte) (*Document, error) {
	var r metsRoot
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedDocument, err.Error())
	}
	if r.XMLName.Space != NamespaceMETS {
		return nil, errors.Wrapf(errors.ErrMalformedDocument,
			"root element is in namespace %q, not %q", r.XMLName.Space, NamespaceMETS)
	}

	doc := &Document{root: r, filesByID: make(map[string]*File)}
	for _, grp := range r.FileSec.Groups {
		for _, f := range grp.Files {
			url := f.location()
			if url == "" {
				continue
			}
			file := &File{ID: f.ID, URL: url, MIMEType: f.MIMEType}
			doc.files = append(doc.files, file)
			doc.filesByID[f.ID] = file
		}
	}
	return doc, nil
}

// Files returns all located files in document order. Callers may fill in
// dimensions; the pointers are shared with PhysicalPages results.
func (d *Document) Files() []*File {
	return d.files
}

// FileByID looks up a file by its fileSec ID.
func (d *Document) FileByID(id string) (*File, bool) {
	f, ok := d.filesByID[id]
	return f, ok
}

// ThumbnailURL returns the location of the first file with MIME type
// image/jpeg, falling back to image/jpg, or "" when neither exists.
func (d *Document) ThumbnailURL() string {
	for _, mime := range []string{"image/jpeg", "image/jpg"} {
		for _, f := range d.files {
			if f.MIMEType == mime {
				return f.URL
			}
		}
	}
	return ""
}

// PhysicalPages resolves the physical structMap into ordered pages. Pages
// referencing no resolvable image file are dropped; their IDs are returned
// so callers can surface the fidelity loss.
func (d *Document) PhysicalPages() (pages []*Page, dropped []string) {
	var pageDivs []divElem
	for _, sm := range d.root.StructMaps {
		if sm.Type != "PHYSICAL" {
			continue
		}
		for _, seq := range sm.Divs {
			if seq.Type != "physSequence" {
				continue
			}
			for _, div := range seq.Divs {
				if div.Type == "page" {
					pageDivs = append(pageDivs, div)
				}
			}
		}
	}

	sort.SliceStable(pageDivs, func(i, j int) bool {
		return pageDivs[i].orderValue() < pageDivs[j].orderValue()
	})

	for _, div := range pageDivs {
		page := &Page{
			ID:    div.ID,
			Label: div.label(),
			Order: div.orderValue(),
		}
		for _, ptr := range div.Fptrs {
			if f, ok := d.filesByID[ptr.FileID]; ok {
				page.Files = append(page.Files, f)
			}
		}
		if len(page.Files) == 0 {
			dropped = append(dropped, div.ID)
			continue
		}
		pages = append(pages, page)
	}
	return pages, dropped
}

// TocEntries builds the logical table of contents from the logical
// structMap, with physical page IDs attached via the structLink section.
func (d *Document) TocEntries() []TocEntry {
	logMap := make(map[string][]string)
	for _, link := range d.root.StructLink.SmLinks {
		if link.From == "" || link.To == "" {
			continue
		}
		logMap[link.From] = append(logMap[link.From], link.To)
	}

	var entries []TocEntry
	for _, sm := range d.root.StructMaps {
		if sm.Type != "LOGICAL" {
			continue
		}
		for _, div := range sm.Divs {
			entries = append(entries, parseTocEntry(div, logMap))
		}
	}
	return entries
}

func parseTocEntry(div divElem, logMap map[string][]string) TocEntry {
	entry := TocEntry{
		LogicalID:   div.ID,
		Label:       div.Label,
		Type:        div.Type,
		PhysicalIDs: logMap[div.ID],
	}
	for _, child := range div.Divs {
		entry.Children = append(entry.Children, parseTocEntry(child, logMap))
	}
	return entry
}

// Raw XML layer. Field tags match on local names, so documents with or
// without namespace prefixes both parse; the root namespace is validated
// separately in ParseDocument.

type metsRoot struct {
	XMLName    xml.Name       `xml:"mets"`
	DmdSecs    []dmdSec       `xml:"dmdSec"`
	AmdSecs    []amdSec       `xml:"amdSec"`
	FileSec    fileSec        `xml:"fileSec"`
	StructMaps []structMap    `xml:"structMap"`
	StructLink structLinkElem `xml:"structLink"`
}

type dmdSec struct {
	ID   string   `xml:"ID,attr"`
	Mods modsElem `xml:"mdWrap>xmlData>mods"`
}

type modsElem struct {
	TitleInfos   []titleInfo      `xml:"titleInfo"`
	Names        []nameElem       `xml:"name"`
	Identifiers  []identifierElem `xml:"identifier"`
	Parts        []partElem       `xml:"part"`
	RelatedItems []relatedItem    `xml:"relatedItem"`
	OriginInfos  []originInfo     `xml:"originInfo"`
	Languages    []languageElem   `xml:"language"`
	Genres       []string         `xml:"genre"`
	Abstract     string           `xml:"abstract"`
}

type titleInfo struct {
	NonSort  string `xml:"nonSort"`
	Title    string `xml:"title"`
	SubTitle string `xml:"subTitle"`
}

type nameElem struct {
	NameParts []string `xml:"namePart"`
	RoleTerms []string `xml:"role>roleTerm"`
}

type identifierElem struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type partElem struct {
	Details []detailElem `xml:"detail"`
}

type detailElem struct {
	Number string `xml:"number"`
}

type relatedItem struct {
	Type       string      `xml:"type,attr"`
	TitleInfos []titleInfo `xml:"titleInfo"`
}

type originInfo struct {
	Places      []string `xml:"place>placeTerm"`
	DatesIssued []string `xml:"dateIssued"`
	Publishers  []string `xml:"publisher"`
}

type languageElem struct {
	Terms []languageTerm `xml:"languageTerm"`
}

type languageTerm struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type amdSec struct {
	RightsMDs   []mdSection `xml:"rightsMD"`
	DigiprovMDs []mdSection `xml:"digiprovMD"`
}

type mdSection struct {
	Rights dvRights `xml:"mdWrap>xmlData>rights"`
	Links  dvLinks  `xml:"mdWrap>xmlData>links"`
}

type dvRights struct {
	Owner        string `xml:"owner"`
	OwnerLogo    string `xml:"ownerLogo"`
	OwnerSiteURL string `xml:"ownerSiteURL"`
	License      string `xml:"license"`
}

type dvLinks struct {
	Presentation string `xml:"presentation"`
}

type fileSec struct {
	Groups []fileGrp `xml:"fileGrp"`
}

type fileGrp struct {
	Use   string     `xml:"USE,attr"`
	Files []fileElem `xml:"file"`
}

type fileElem struct {
	ID       string   `xml:"ID,attr"`
	MIMEType string   `xml:"MIMETYPE,attr"`
	FLocats  []fLocat `xml:"FLocat"`
}

func (f fileElem) location() string {
	for _, loc := range f.FLocats {
		if loc.LocType == "URL" && loc.Href != "" {
			return loc.Href
		}
	}
	return ""
}

type fLocat struct {
	LocType string `xml:"LOCTYPE,attr"`
	Href    string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

type structMap struct {
	Type string    `xml:"TYPE,attr"`
	Divs []divElem `xml:"div"`
}

type divElem struct {
	ID         string    `xml:"ID,attr"`
	Type       string    `xml:"TYPE,attr"`
	Label      string    `xml:"LABEL,attr"`
	OrderLabel string    `xml:"ORDERLABEL,attr"`
	Order      string    `xml:"ORDER,attr"`
	Fptrs      []fptr    `xml:"fptr"`
	Divs       []divElem `xml:"div"`
}

// label falls back LABEL -> ORDERLABEL -> ORDER -> "?"
func (d divElem) label() string {
	switch {
	case d.Label != "":
		return d.Label
	case d.OrderLabel != "":
		return d.OrderLabel
	case d.Order != "":
		return d.Order
	default:
		return "?"
	}
}

func (d divElem) orderValue() int {
	n, err := strconv.Atoi(d.Order)
	if err != nil {
		return 0
	}
	return n
}

type fptr struct {
	FileID string `xml:"FILEID,attr"`
}

type structLinkElem struct {
	SmLinks []smLink `xml:"smLink"`
}

type smLink struct {
	From string `xml:"http://www.w3.org/1999/xlink from,attr"`
	To   string `xml:"http://www.w3.org/1999/xlink to,attr"`
}
