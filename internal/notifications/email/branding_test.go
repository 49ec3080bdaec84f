package email

import (
	"testing"

	"recruitfluency/internal/types"
)

const (
	testPhotoBase   = "https://api.recruit.soccer/api/photo"
	testDefaultLogo = "https://app.recruit.soccer/logo.png"
)

func TestResolveBranding(t *testing.T) {
	full := types.WhiteLabel{
		PrimaryColor:         "#010101",
		AccentColor:          "#020202",
		FontColor:            "#030303",
		FontColorSecondary:   "#040404",
		InputBackgroundColor: "#050505",
		InputBorderColor:     "#060606",
	}

	tests := []struct {
		name string
		club *types.Club
		want Branding
	}{
		{
			name: "no club",
			club: nil,
			want: DefaultBranding(testDefaultLogo),
		},
		{
			name: "club without subscription keeps defaults exactly",
			club: &types.Club{LogoFileID: "logo-1", WhiteLabel: full},
			want: DefaultBranding(testDefaultLogo),
		},
		{
			name: "subscribed club with full branding",
			club: &types.Club{LogoFileID: "logo-1", IsSubscriptionActive: true, WhiteLabel: full},
			want: Branding{
				PrimaryColor:         "#010101",
				AccentColor:          "#020202",
				FontColor:            "#030303",
				FontColorSecondary:   "#040404",
				InputBackgroundColor: "#050505",
				InputBorderColor:     "#060606",
				LogoURL:              testPhotoBase + "/logo-1",
			},
		},
		{
			name: "subscribed club with partial branding and no logo",
			club: &types.Club{IsSubscriptionActive: true, WhiteLabel: types.WhiteLabel{InputBorderColor: "#999999"}},
			want: Branding{
				PrimaryColor:         DefaultPrimaryColor,
				AccentColor:          DefaultAccentColor,
				FontColor:            DefaultFontColor,
				FontColorSecondary:   DefaultFontColorSecondary,
				InputBackgroundColor: DefaultInputBackgroundColor,
				InputBorderColor:     "#999999",
				LogoURL:              testDefaultLogo,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveBranding(tt.club, testPhotoBase, testDefaultLogo); got != tt.want {
				t.Errorf("ResolveBranding() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSenderAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Jo Smith", "jo.smith@recruit.soccer"},
		{"accents and double space", "José  Núñez", "jose.nunez@recruit.soccer"},
		{"apostrophe dropped", "Liam O'Brien", "liam.obrien@recruit.soccer"},
		{"hyphen kept", "Mary-Kate Lee", "mary-kate.lee@recruit.soccer"},
		{"stray dots trimmed", "Jo .Smith.", "jo.smith@recruit.soccer"},
		{"empty", "", "noreply@recruit.soccer"},
		{"nothing usable", "!!! ???", "noreply@recruit.soccer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SenderAddress(tt.in, "recruit.soccer", "noreply@recruit.soccer"); got != tt.want {
				t.Errorf("SenderAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSenderAddress_NoDomainFallsBack(t *testing.T) {
	if got := SenderAddress("Jo Smith", "", "noreply@recruit.soccer"); got != "noreply@recruit.soccer" {
		t.Errorf("got %q", got)
	}
}
