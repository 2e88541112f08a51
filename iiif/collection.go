package iiif

import "fmt"

// Collection is a paginated IIIF Presentation 2.x collection. The top view
// (page 0) carries first/last/total; numbered pages carry the manifests
// slice plus next/prev navigation.
type Collection struct {
	Context    string               `json:"@context"`
	ID         string               `json:"@id"`
	Type       string               `json:"@type"`
	Label      string               `json:"label"`
	Total      int                  `json:"total"`
	First      string               `json:"first,omitempty"`
	Last       string               `json:"last,omitempty"`
	Within     string               `json:"within,omitempty"`
	StartIndex *int                 `json:"startIndex,omitempty"`
	Manifests  []CollectionManifest `json:"manifests,omitempty"`
	Next       string               `json:"next,omitempty"`
	Prev       string               `json:"prev,omitempty"`
}

// CollectionManifest is a manifest summary inside a collection page
type CollectionManifest struct {
	ID          string    `json:"@id"`
	Type        string    `json:"@type"`
	Label       string    `json:"label"`
	Attribution string    `json:"attribution,omitempty"`
	Logo        string    `json:"logo,omitempty"`
	Thumbnail   *ImageRef `json:"thumbnail,omitempty"`
}

// MakeCollection builds the view of a collection. page 0 produces the top
// view, pages >= 1 produce the numbered page holding the given manifests.
// total is the collection-wide manifest count, lastPage the highest page
// number and perPage the page size used for startIndex offsets.
func MakeCollection(name, label, baseURL string, manifests []CollectionManifest, total, page, lastPage, perPage int) *Collection {
	collectionBase := fmt.Sprintf("%s/iiif/collection/%s", baseURL, name)

	coll := &Collection{
		Context: PresentationContext,
		Type:    "sc:Collection",
		Label:   label,
		Total:   total,
	}
	if page == 0 {
		coll.ID = collectionBase
		if lastPage >= 1 {
			coll.First = fmt.Sprintf("%s/p1", collectionBase)
			coll.Last = fmt.Sprintf("%s/p%d", collectionBase, lastPage)
		}
		return coll
	}

	coll.ID = fmt.Sprintf("%s/p%d", collectionBase, page)
	coll.Within = collectionBase
	startIndex := (page - 1) * perPage
	if len(manifests) > 0 {
		coll.StartIndex = &startIndex
	}
	coll.Manifests = manifests
	if page < lastPage {
		coll.Next = fmt.Sprintf("%s/p%d", collectionBase, page+1)
	}
	if page > 1 {
		coll.Prev = fmt.Sprintf("%s/p%d", collectionBase, page-1)
	}
	return coll
}
