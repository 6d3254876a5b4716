package domain

// ParameterDescription documents one stylesheet parameter and its default.
type ParameterDescription struct {
	Default     string `json:"default"`
	Description string `json:"description,omitempty"`
}

// StructureStylesheetDescription describes the rendering parameters of a structure stylesheet.
type StructureStylesheetDescription struct {
	ID                int                             `json:"id"`
	Name              string                          `json:"name"`
	Description       string                          `json:"description,omitempty"`
	URI               string                          `json:"uri"`
	DescriptionURI    string                          `json:"description_uri,omitempty"`
	Parameters        map[string]ParameterDescription `json:"parameters,omitempty"`
	FolderAttributes  map[string]ParameterDescription `json:"folder_attributes,omitempty"`
	ChannelAttributes map[string]ParameterDescription `json:"channel_attributes,omitempty"`
}

// ThemeStylesheetDescription describes the rendering parameters of a theme stylesheet.
type ThemeStylesheetDescription struct {
	ID                    int                             `json:"id"`
	StructureStylesheetID int                             `json:"structure_stylesheet_id"`
	Name                  string                          `json:"name"`
	Description           string                          `json:"description,omitempty"`
	URI                   string                          `json:"uri"`
	MimeType              string                          `json:"mime_type"`
	SerializerName        string                          `json:"serializer_name"`
	Parameters            map[string]ParameterDescription `json:"parameters,omitempty"`
	ChannelAttributes     map[string]ParameterDescription `json:"channel_attributes,omitempty"`
}
