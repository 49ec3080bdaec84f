package email

import (
	"strings"

	"recruitfluency/internal/types"
)

// Platform branding used whenever a club has not paid for white-labeling.
const (
	DefaultPrimaryColor         = "#0B1F3A"
	DefaultAccentColor          = "#F5A623"
	DefaultFontColor            = "#FFFFFF"
	DefaultFontColorSecondary   = "#B0B8C4"
	DefaultInputBackgroundColor = "#13294B"
	DefaultInputBorderColor     = "#2E4A74"
)

// Branding is the resolved white-label block merged into the template model.
type Branding struct {
	PrimaryColor         string
	AccentColor          string
	FontColor            string
	FontColorSecondary   string
	InputBackgroundColor string
	InputBorderColor     string
	LogoURL              string
}

// DefaultBranding returns the platform branding with the given logo.
func DefaultBranding(logoURL string) Branding {
	return Branding{
		PrimaryColor:         DefaultPrimaryColor,
		AccentColor:          DefaultAccentColor,
		FontColor:            DefaultFontColor,
		FontColorSecondary:   DefaultFontColorSecondary,
		InputBackgroundColor: DefaultInputBackgroundColor,
		InputBorderColor:     DefaultInputBorderColor,
		LogoURL:              logoURL,
	}
}

// ResolveBranding picks the club's branding when the club exists and its
// subscription is active. Each empty club field falls back to the platform
// default on its own. A club without a logo file keeps the default logo.
func ResolveBranding(club *types.Club, photoBaseURL, defaultLogoURL string) Branding {
	b := DefaultBranding(defaultLogoURL)
	if club == nil || !club.IsSubscriptionActive {
		return b
	}

	wl := club.WhiteLabel
	b.PrimaryColor = orDefault(wl.PrimaryColor, b.PrimaryColor)
	b.AccentColor = orDefault(wl.AccentColor, b.AccentColor)
	b.FontColor = orDefault(wl.FontColor, b.FontColor)
	b.FontColorSecondary = orDefault(wl.FontColorSecondary, b.FontColorSecondary)
	b.InputBackgroundColor = orDefault(wl.InputBackgroundColor, b.InputBackgroundColor)
	b.InputBorderColor = orDefault(wl.InputBorderColor, b.InputBorderColor)
	if club.LogoFileID != "" {
		b.LogoURL = strings.TrimSuffix(photoBaseURL, "/") + "/" + club.LogoFileID
	}
	return b
}

func (b Branding) apply(model map[string]any) {
	model["primaryColor"] = b.PrimaryColor
	model["accentColor"] = b.AccentColor
	model["fontColor"] = b.FontColor
	model["fontColorSecondary"] = b.FontColorSecondary
	model["inputBackgroundColor"] = b.InputBackgroundColor
	model["inputBorderColor"] = b.InputBorderColor
	model["logoUrl"] = b.LogoURL
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
