package services

import (
	"fmt"
	"net/url"
)

// NavigationTarget is the handoff to an external map application. Mobile
// clients try the deep link first and fall back to the web URL; desktop
// clients get only the web URL. Opening it is fire-and-forget on the client,
// no state transition happens here.
type NavigationTarget struct {
	URL         string `json:"url"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

// NavigationLink builds the turn-by-turn handoff for a destination.
// platform is "android", "ios" or anything else for desktop/web.
func NavigationLink(lat, lon float64, platform string) NavigationTarget {
	web := fmt.Sprintf(
		"https://www.google.com/maps/dir/?api=1&destination=%s",
		url.QueryEscape(fmt.Sprintf("%.6f,%.6f", lat, lon)),
	)

	switch platform {
	case "android":
		return NavigationTarget{
			URL:         fmt.Sprintf("geo:%.6f,%.6f?q=%.6f,%.6f", lat, lon, lat, lon),
			FallbackURL: web,
		}
	case "ios":
		return NavigationTarget{
			URL:         fmt.Sprintf("comgooglemaps://?daddr=%.6f,%.6f&directionsmode=driving", lat, lon),
			FallbackURL: web,
		}
	default:
		return NavigationTarget{URL: web}
	}
}
