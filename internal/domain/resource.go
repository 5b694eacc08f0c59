package domain

// ResourceTypedDataSet is the index name of a dataset's typed fact table.
const ResourceTypedDataSet = "TypedDataSet"

// ResourceEntry names one sub-resource of a dataset.
type ResourceEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ResourceIndex is the directory document served at a dataset root URL.
type ResourceIndex struct {
	MetadataURL string          `json:"odata.metadata"`
	Entries     []ResourceEntry `json:"value"`

	// Source is the URL the index was fetched from. Not part of the payload.
	Source string `json:"-"`
}

// Resolve returns the URL of the entry named name. Entry order is not
// significant; the first exact name match is returned.
func (idx ResourceIndex) Resolve(name string) (string, error) {
	for _, e := range idx.Entries {
		if e.Name == name {
			return e.URL, nil
		}
	}
	return "", &NotFoundError{Name: name, Index: idx.Source}
}
