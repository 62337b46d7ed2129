package trafikverket

import (
	"encoding/xml"
	"fmt"
)

const (
	objectTypeCamera    = "Camera"
	cameraSchemaVersion = "1.0"
)

var cameraFields = []string{
	"ActiveInfo",
	"Active",
	"Deleted",
	"Description",
	"Direction",
	"HasFullSizePhoto",
	"Id",
	"Location",
	"ModifiedTime",
	"Name",
	"PhotoTime",
	"PhotoUrl",
	"Status",
	"Type",
}

type request struct {
	XMLName xml.Name `xml:"REQUEST"`
	Login   login    `xml:"LOGIN"`
	Query   query    `xml:"QUERY"`
}

type login struct {
	AuthenticationKey string `xml:"authenticationkey,attr"`
}

type query struct {
	ObjectType    string       `xml:"objecttype,attr"`
	SchemaVersion string       `xml:"schemaversion,attr"`
	Limit         int          `xml:"limit,attr,omitempty"`
	Filter        *filterBlock `xml:"FILTER,omitempty"`
	Include       []string     `xml:"INCLUDE"`
}

// filterBlock wraps the filter tree: a Filter's XMLName takes precedence
// over a field tag, so FILTER needs its own type.
type filterBlock struct {
	Filters []Filter `xml:",any"`
}

// Filter is a node of a query filter tree. Leaves compare one field,
// AND/OR nodes combine their children.
type Filter struct {
	XMLName  xml.Name
	Name     string   `xml:"name,attr,omitempty"`
	Value    string   `xml:"value,attr,omitempty"`
	Children []Filter `xml:",any"`
}

func Equal(field, value string) Filter {
	return Filter{XMLName: xml.Name{Local: "EQ"}, Name: field, Value: value}
}

func And(children ...Filter) Filter {
	return Filter{XMLName: xml.Name{Local: "AND"}, Children: children}
}

func Or(children ...Filter) Filter {
	return Filter{XMLName: xml.Name{Local: "OR"}, Children: children}
}

func buildRequest(apiKey, objectType, schemaVersion string, fields []string, limit int, filter *Filter) ([]byte, error) {
	req := request{
		Login: login{AuthenticationKey: apiKey},
		Query: query{
			ObjectType:    objectType,
			SchemaVersion: schemaVersion,
			Limit:         limit,
			Include:       fields,
		},
	}
	if filter != nil {
		req.Query.Filter = &filterBlock{Filters: []Filter{*filter}}
	}
	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return body, nil
}
