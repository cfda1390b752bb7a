package imagegen

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultSize = "1024x1024"

type Platform struct {
	Key    string
	Name   string
	Width  int
	Height int
}

func (p Platform) Size() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

var platforms = map[string]Platform{
	"instagram": {Key: "instagram", Name: "Instagram", Width: 1080, Height: 1080},
	"facebook":  {Key: "facebook", Name: "Facebook", Width: 1200, Height: 630},
	"linkedin":  {Key: "linkedin", Name: "LinkedIn", Width: 1200, Height: 627},
	"pinterest": {Key: "pinterest", Name: "Pinterest", Width: 1000, Height: 1500},
	"youtube":   {Key: "youtube", Name: "YouTube", Width: 1080, Height: 1920},
	"tiktok":    {Key: "tiktok", Name: "TikTok", Width: 1080, Height: 1920},
}

func Platforms() []Platform {
	order := []string{"instagram", "facebook", "linkedin", "pinterest", "youtube", "tiktok"}

	out := make([]Platform, 0, len(order))
	for _, key := range order {
		if p, ok := platforms[key]; ok {
			out = append(out, p)
		}
	}
	return out
}

func LookupPlatform(key string) (Platform, bool) {
	p, ok := platforms[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// ResolveSize accepts "WxH" or a platform name and returns a normalized "WxH".
// Empty input resolves to DefaultSize.
func ResolveSize(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultSize, nil
	}
	if p, ok := platforms[value]; ok {
		return p.Size(), nil
	}
	w, h, err := ParseSize(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%dx%d", w, h), nil
}

func ParseSize(value string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(value)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", value)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", value)
	}
	return w, h, nil
}

// AspectRatio reduces a "WxH" size to its lowest terms, e.g. "1200x630" -> "40:21".
func AspectRatio(size string) string {
	w, h, err := ParseSize(size)
	if err != nil {
		return "1:1"
	}
	d := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/d, h/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
