package browser

import (
	"context"
	"sort"
)

// DesignTokens is a heuristic survey of the page's visual language: distinct
// observed style values collected into deduplicated sorted sets.
type DesignTokens struct {
	Colors           []string          `json:"colors"`
	FontSizes        []string          `json:"fontSizes"`
	FontFamilies     []string          `json:"fontFamilies"`
	Spacing          []string          `json:"spacing"`
	BorderRadii      []string          `json:"borderRadii"`
	Shadows          []string          `json:"shadows"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
	SampledElements  int               `json:"sampledElements"`
}

// designTokensJS samples up to 200 evenly-spaced elements plus the root
// element's custom properties. Not exhaustive; a survey.
const designTokensJS = `() => {
	const all = Array.from(document.querySelectorAll('*'));
	const limit = 200;
	const step = Math.max(1, Math.floor(all.length / limit));
	const out = {
		colors: [], fontSizes: [], fontFamilies: [],
		spacing: [], borderRadii: [], shadows: [],
		custom: {}, sampled: 0
	};
	for (let i = 0; i < all.length && out.sampled < limit; i += step) {
		const style = window.getComputedStyle(all[i]);
		out.sampled++;
		out.colors.push(style.color, style.backgroundColor);
		out.fontSizes.push(style.fontSize);
		out.fontFamilies.push(style.fontFamily);
		out.spacing.push(style.margin, style.padding);
		out.borderRadii.push(style.borderRadius);
		out.shadows.push(style.boxShadow);
	}
	const rootStyle = window.getComputedStyle(document.documentElement);
	for (let i = 0; i < rootStyle.length; i++) {
		const prop = rootStyle[i];
		if (prop.startsWith('--')) {
			out.custom[prop] = rootStyle.getPropertyValue(prop).trim();
		}
	}
	return out;
}`

// ExtractDesignTokens surveys the session's page.
func ExtractDesignTokens(ctx context.Context, s *Session) (DesignTokens, error) {
	val, err := s.Eval(ctx, designTokensJS)
	if err != nil {
		return DesignTokens{}, err
	}

	collect := func(key string, skip ...string) []string {
		skipped := map[string]bool{"": true}
		for _, sv := range skip {
			skipped[sv] = true
		}
		seen := map[string]bool{}
		var out []string
		for _, v := range val.Get(key).Arr() {
			sv := v.Str()
			if skipped[sv] || seen[sv] {
				continue
			}
			seen[sv] = true
			out = append(out, sv)
		}
		sort.Strings(out)
		return out
	}

	tokens := DesignTokens{
		Colors:          collect("colors", "rgba(0, 0, 0, 0)"),
		FontSizes:       collect("fontSizes"),
		FontFamilies:    collect("fontFamilies"),
		Spacing:         collect("spacing", "0px"),
		BorderRadii:     collect("borderRadii", "0px"),
		Shadows:         collect("shadows", "none"),
		SampledElements: val.Get("sampled").Int(),
	}
	custom := val.Get("custom").Map()
	if len(custom) > 0 {
		tokens.CustomProperties = make(map[string]string, len(custom))
		for k, v := range custom {
			tokens.CustomProperties[k] = v.Str()
		}
	}
	return tokens, nil
}
