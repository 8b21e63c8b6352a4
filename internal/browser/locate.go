package browser

import (
	"context"
)

// locateJS finds a matching element by CSS selector, or by visible text among
// interactive elements, picking the index-th match when several qualify. It
// scrolls the element into view and returns its bounding-box center plus
// descriptive metadata.
const locateJS = `(selector, text, index) => {
	let matches = [];
	if (selector) {
		try {
			matches = Array.from(document.querySelectorAll(selector));
		} catch (e) {
			return { found: false, matches: 0, badSelector: true };
		}
	} else if (text) {
		const needle = text.trim().toLowerCase();
		const candidates = Array.from(document.querySelectorAll(
			'a, button, input, select, textarea, label, summary, [role="button"], [role="link"], [onclick]'));
		matches = candidates.filter(el =>
			((el.innerText || el.value || el.getAttribute('aria-label') || '')
				.trim().toLowerCase()).includes(needle));
	}
	if (matches.length === 0) return { found: false, matches: 0 };
	const i = Math.min(Math.max(index || 0, 0), matches.length - 1);
	const el = matches[i];
	el.scrollIntoView({ block: 'center', inline: 'center' });
	const rect = el.getBoundingClientRect();
	const attrs = {};
	for (const { name, value } of Array.from(el.attributes || [])) {
		attrs[name] = value;
	}
	return {
		found: true,
		matches: matches.length,
		x: rect.x + rect.width / 2,
		y: rect.y + rect.height / 2,
		tag: el.tagName,
		text: (el.innerText || el.value || '').slice(0, 200),
		attrs: attrs
	};
}`

// locate runs the locate phase against the page. A missing element is a
// normal negative outcome (Found=false), not an error; the returned error is
// reserved for protocol failures.
func locate(ctx context.Context, s *Session, selector, text string, index int) (ElementInfo, error) {
	val, err := s.Eval(ctx, locateJS, selector, text, index)
	if err != nil {
		return ElementInfo{}, err
	}
	info := ElementInfo{
		Found:   val.Get("found").Bool(),
		Matches: val.Get("matches").Int(),
	}
	if !info.Found {
		return info, nil
	}
	info.X = val.Get("x").Num()
	info.Y = val.Get("y").Num()
	info.Tag = val.Get("tag").Str()
	info.Text = val.Get("text").Str()
	attrs := val.Get("attrs").Map()
	if len(attrs) > 0 {
		info.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			info.Attributes[k] = v.Str()
		}
	}
	return info, nil
}

// waitPredicateJS reports whether a matching element currently exists, and
// when visible is set, whether it has rendered width and a non-hidden
// computed style.
const waitPredicateJS = `(selector, text, visible) => {
	let el = null;
	if (selector) {
		try {
			el = document.querySelector(selector);
		} catch (e) {
			return false;
		}
	} else if (text) {
		const needle = text.trim().toLowerCase();
		const candidates = Array.from(document.querySelectorAll(
			'a, button, input, select, textarea, label, summary, [role="button"], [role="link"], [onclick], h1, h2, h3, p, span, div'));
		el = candidates.find(c =>
			((c.innerText || c.value || '').trim().toLowerCase()).includes(needle)) || null;
	}
	if (!el) return false;
	if (!visible) return true;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return rect.width > 0 && style.display !== 'none' && style.visibility !== 'hidden';
}`

// focusJS focuses an element and optionally clears its value, firing a
// synthetic input event so framework-bound listeners observe the clear.
const focusJS = `(selector, clear) => {
	let el = null;
	try {
		el = document.querySelector(selector);
	} catch (e) {
		return { found: false };
	}
	if (!el) return { found: false };
	el.focus();
	if (clear && 'value' in el) {
		el.value = '';
		el.dispatchEvent(new Event('input', { bubbles: true }));
	}
	return { found: true, tag: el.tagName };
}`

// selectOptionJS selects a <select> option by value, label, or text through
// the DOM API; there is no meaningful pointer target for option selection.
const selectOptionJS = `(selector, value) => {
	let el = null;
	try {
		el = document.querySelector(selector);
	} catch (e) {
		return { found: false };
	}
	if (!el || el.tagName !== 'SELECT') return { found: false };
	let matched = false;
	for (const opt of Array.from(el.options)) {
		if (opt.value === value || opt.label === value || opt.text === value) {
			el.value = opt.value;
			matched = true;
			break;
		}
	}
	if (matched) {
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}
	return { found: true, matched: matched };
}`
