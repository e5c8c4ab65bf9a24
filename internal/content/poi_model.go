package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"trailcms/api/internal/cmserr"
)

// NFT describes an image-tracking marker and the model anchored to it.
type NFT struct {
	ID       string `yaml:"id" json:"id"`
	Model    string `yaml:"model" json:"model"`
	Scale    string `yaml:"scale,omitempty" json:"scale,omitempty"`
	Position string `yaml:"position,omitempty" json:"position,omitempty"`
	Rotation string `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

type Audio struct {
	Filename string `yaml:"filename" json:"filename"`
}

type AR struct {
	Type     string `yaml:"type" json:"type"`
	Content  string `yaml:"content" json:"content"`
	Location string `yaml:"location" json:"location"`
	Video    []any  `yaml:"video,omitempty" json:"video,omitempty"`
	Audio    *Audio `yaml:"audio,omitempty" json:"audio,omitempty"`
	NFT      []NFT  `yaml:"nft" json:"nft"`
}

type POI struct {
	ID      string    `yaml:"id,omitempty" json:"id"`
	Title   string    `yaml:"title" json:"title"`
	Image   string    `yaml:"image" json:"image"`
	Layout  string    `yaml:"layout" json:"layout"`
	GMaps   *string   `yaml:"gmaps" json:"gmaps"`
	Coords  []float64 `yaml:"coords,flow" json:"coords"`
	Info    string    `yaml:"info" json:"info"`
	ARDesc  string    `yaml:"arDesc" json:"arDesc"`
	Type    string    `yaml:"type" json:"type"`
	AR      AR        `yaml:"ar" json:"ar"`
	Content string    `yaml:"-" json:"content"`
}

// POI defaults applied at creation.
const (
	DefaultPOIImage   = "default.jpg"
	DefaultPOILayout  = "poi"
	DefaultPOIType    = "poi"
	DefaultPOIInfo    = "No information available."
	DefaultPOIARDesc  = "No AR description available."
	DefaultARType     = "none"
	DefaultARContent  = "none"
	DefaultARLocation = "none"
)

// ApplyPOIDefaults fills every optional field left empty. Title and coords
// are required and never defaulted; gmaps stays unset.
func ApplyPOIDefaults(p POI) POI {
	if p.Image == "" {
		p.Image = DefaultPOIImage
	}
	if p.Layout == "" {
		p.Layout = DefaultPOILayout
	}
	if p.Type == "" {
		p.Type = DefaultPOIType
	}
	if p.Info == "" {
		p.Info = DefaultPOIInfo
	}
	if p.ARDesc == "" {
		p.ARDesc = DefaultPOIARDesc
	}
	if p.AR.Type == "" {
		p.AR.Type = DefaultARType
	}
	if p.AR.Content == "" {
		p.AR.Content = DefaultARContent
	}
	if p.AR.Location == "" {
		p.AR.Location = DefaultARLocation
	}
	if p.AR.NFT == nil {
		p.AR.NFT = []NFT{}
	}
	if p.GMaps != nil && *p.GMaps == "" {
		p.GMaps = nil
	}
	return p
}

// ValidatePOI checks the semantic constraints of a POI before it is written.
func ValidatePOI(p POI) error {
	problems := make([]string, 0)
	required := []struct{ name, value string }{
		{"title", p.Title},
		{"image", p.Image},
		{"layout", p.Layout},
		{"info", p.Info},
		{"arDesc", p.ARDesc},
		{"ar.type", p.AR.Type},
		{"ar.content", p.AR.Content},
		{"ar.location", p.AR.Location},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			problems = append(problems, field.name+": is required")
		}
	}
	if len(p.Coords) != 2 {
		problems = append(problems, "coords: must be an array of two numbers")
	}
	if p.GMaps != nil && *p.GMaps != "" && !validURL(*p.GMaps) {
		problems = append(problems, "gmaps: invalid Google Maps URL")
	}
	for i, nft := range p.AR.NFT {
		if nft.ID == "" || nft.Model == "" {
			problems = append(problems, fmt.Sprintf("ar.nft.%d: id and model are required", i))
		}
	}
	if len(problems) > 0 {
		return cmserr.Validation("invalid POI data: %s", strings.Join(problems, ", "))
	}
	return nil
}

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a POI id from its title.
func Slug(title string) string {
	return strings.Trim(nonSlugRun.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// decodePOI converts parsed frontmatter into a POI. Unknown keys are dropped.
func decodePOI(frontmatter map[string]any) (POI, error) {
	raw, err := yaml.Marshal(frontmatter)
	if err != nil {
		return POI{}, fmt.Errorf("encode frontmatter: %w", err)
	}
	var p POI
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return POI{}, cmserr.Validation("invalid POI data: %v", err)
	}
	return p, nil
}

// poiFields renders p as the frontmatter map it is written as.
func poiFields(p POI) (map[string]any, error) {
	raw, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode POI %s: %w", p.ID, err)
	}
	fields := make(map[string]any)
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode POI %s: %w", p.ID, err)
	}
	return fields, nil
}
