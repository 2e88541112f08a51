package mets

import "fmt"

// UntitledLabel is used when a document carries no usable title at all.
const UntitledLabel = "Untitled document"

// Metadata extracts the descriptive metadata of the document. Missing
// optional fields yield zero values, never errors.
func (d *Document) Metadata() Metadata {
	meta := Metadata{Identifiers: make(map[string]string)}

	// A document without any dmdSec still gets the full fallback chain,
	// most importantly the UntitledLabel title
	var mods modsElem
	if len(d.root.DmdSecs) > 0 {
		mods = d.root.DmdSecs[0].Mods
	}
	meta.Title = deriveTitle(mods)
	meta.Creators = deriveCreators(mods)
	for _, id := range mods.Identifiers {
		if id.Value != "" {
			meta.Identifiers[id.Type] = id.Value
		}
	}
	for _, origin := range mods.OriginInfos {
		if meta.PublicationPlace == "" && len(origin.Places) > 0 {
			meta.PublicationPlace = origin.Places[0]
		}
		if meta.PublicationDate == "" && len(origin.DatesIssued) > 0 {
			meta.PublicationDate = origin.DatesIssued[0]
		}
		if meta.Publisher == "" && len(origin.Publishers) > 0 {
			meta.Publisher = origin.Publishers[0]
		}
	}
	for _, lang := range mods.Languages {
		for _, term := range lang.Terms {
			if term.Type == "text" {
				meta.Language = term.Value
				break
			}
		}
	}
	if len(mods.Genres) > 0 {
		meta.Genre = mods.Genres[0]
	}
	meta.Description = mods.Abstract

	meta.License = "reserved"
	for _, amd := range d.root.AmdSecs {
		for _, rights := range amd.RightsMDs {
			r := rights.Rights
			if r.Owner != "" || r.OwnerSiteURL != "" || r.OwnerLogo != "" {
				meta.Attribution = Attribution{
					Owner:   r.Owner,
					SiteURL: r.OwnerSiteURL,
					Logo:    r.OwnerLogo,
				}
			}
			if r.License != "" {
				meta.License = r.License
			}
		}
		for _, prov := range amd.DigiprovMDs {
			if prov.Links.Presentation != "" {
				meta.Related = prov.Links.Presentation
			}
		}
	}

	for _, grp := range d.root.FileSec.Groups {
		if grp.Use != "DOWNLOAD" {
			continue
		}
		for _, f := range grp.Files {
			if f.MIMEType == "application/pdf" {
				meta.PDFDownloadURL = f.location()
				break
			}
		}
	}

	return meta
}

// deriveTitle builds the document title from the first titleInfo, falling
// back to the host item's title for volumes of multi-volume works, then to
// UntitledLabel.
func deriveTitle(mods modsElem) string {
	title := ""
	if len(mods.TitleInfos) > 0 {
		title = formatTitle(mods.TitleInfos[0])
	}
	if title == "" {
		for _, rel := range mods.RelatedItems {
			if rel.Type == "host" && len(rel.TitleInfos) > 0 {
				title = formatTitle(rel.TitleInfos[0])
				break
			}
		}
	}
	if title == "" {
		return UntitledLabel
	}

	if part := partNumber(mods); part != "" {
		title = fmt.Sprintf("%s (%s)", title, part)
	}
	return title
}

func formatTitle(ti titleInfo) string {
	title := ti.Title
	if ti.NonSort != "" {
		title = ti.NonSort + title
	}
	if title != "" && ti.SubTitle != "" {
		title = fmt.Sprintf("%s. %s", title, ti.SubTitle)
	}
	return title
}

func partNumber(mods modsElem) string {
	for _, part := range mods.Parts {
		for _, detail := range part.Details {
			if detail.Number != "" {
				return detail.Number
			}
		}
	}
	return ""
}

// deriveCreators returns the name parts of all names with the author role.
func deriveCreators(mods modsElem) []string {
	var creators []string
	for _, name := range mods.Names {
		isAuthor := false
		for _, role := range name.RoleTerms {
			if role == "aut" {
				isAuthor = true
				break
			}
		}
		if !isAuthor {
			continue
		}
		for _, part := range name.NameParts {
			if part != "" {
				creators = append(creators, part)
			}
		}
	}
	return creators
}
