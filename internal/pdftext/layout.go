// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package pdftext

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// span is a positioned run of text in PDF user space, where larger y values
// are higher on the page.
type span struct {
	text   string
	left   float64
	right  float64
	top    float64
	bottom float64
	size   float64
	font   string
}

type line struct {
	spans  []span
	top    float64
	bottom float64
	size   float64
	font   string
}

func (l line) text() string {
	var b strings.Builder
	for i, s := range l.spans {
		if i > 0 && needsSpace(l.spans[i-1], s) {
			b.WriteByte(' ')
		}
		b.WriteString(s.text)
	}
	return strings.TrimSpace(b.String())
}

func needsSpace(prev, next span) bool {
	if strings.HasSuffix(prev.text, " ") || strings.HasPrefix(next.text, " ") {
		return false
	}
	if prev.right <= prev.left {
		return false
	}
	return next.left-prev.right > math.Max(1, next.size*0.2)
}

// groupLines buckets spans whose tops lie within tolerance of each other and
// orders the result top to bottom, left to right.
func groupLines(spans []span, tolerance float64) []line {
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].top > spans[j].top })

	var lines []line
	for _, s := range spans {
		if n := len(lines); n > 0 && math.Abs(lines[n-1].top-s.top) < tolerance {
			lines[n-1].spans = append(lines[n-1].spans, s)
			lines[n-1].bottom = math.Min(lines[n-1].bottom, s.bottom)
			continue
		}
		lines = append(lines, line{spans: []span{s}, top: s.top, bottom: s.bottom})
	}

	for i := range lines {
		sort.SliceStable(lines[i].spans, func(a, b int) bool { return lines[i].spans[a].left < lines[i].spans[b].left })
		lines[i].size, lines[i].font = dominantFont(lines[i].spans)
	}
	return lines
}

func roundSize(s float64) float64 { return math.Round(s*10) / 10 }

// dominantFont returns the size and font name carrying the most characters.
func dominantFont(spans []span) (float64, string) {
	type key struct {
		size float64
		font string
	}
	weight := map[key]int{}
	var best key
	for _, s := range spans {
		k := key{roundSize(s.size), s.font}
		weight[k] += len(strings.TrimSpace(s.text))
		if weight[k] > weight[best] {
			best = k
		}
	}
	return best.size, best.font
}

// bodySize is the font size carrying the most characters on the page.
func bodySize(lines []line) float64 {
	weight := map[float64]int{}
	var best float64
	for _, l := range lines {
		for _, s := range l.spans {
			sz := roundSize(s.size)
			weight[sz] += len(strings.TrimSpace(s.text))
			if weight[sz] > weight[best] {
				best = sz
			}
		}
	}
	return best
}

func isBold(font string) bool {
	f := strings.ToLower(font)
	return strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.HasSuffix(f, "bd")
}

func heading(l line, body float64, text string) int {
	if body <= 0 || l.size <= 0 {
		return 0
	}
	switch ratio := l.size / body; {
	case ratio >= 2:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.1:
		if isBold(l.font) {
			return 3
		}
		return 4
	}
	if isBold(l.font) && l.size >= body && len(text) < 80 && !strings.HasSuffix(text, ".") {
		return 4
	}
	return 0
}

// render writes lines as Markdown, turning oversized or short bold lines into
// headings and vertical gaps into paragraph breaks.
func render(lines []line) string {
	body := bodySize(lines)
	var b strings.Builder
	var prev *line
	for i := range lines {
		l := &lines[i]
		text := l.text()
		if text == "" || isFootnoteMarker(*l, body, text) {
			continue
		}

		if level := heading(*l, body, text); level > 0 {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
			prev = nil
			continue
		}

		if prev != nil {
			height := l.top - l.bottom
			if height <= 0 {
				height = body
			}
			if prev.bottom-l.top > height*1.5 {
				b.WriteString("\n")
			}
		}
		b.WriteString(text + "\n")
		prev = l
	}
	return strings.TrimSpace(b.String())
}

func isFootnoteMarker(l line, body float64, text string) bool {
	if body <= 0 || l.size <= 0 || l.size >= body*0.6 {
		return false
	}
	return len(text) <= 3 && strings.IndexFunc(text, unicode.IsLetter) < 0
}
