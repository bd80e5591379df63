package protocol

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

var (
	contextLineRe  = regexp.MustCompile(`(?i)context:\s*(.+)`)
	nextHintLineRe = regexp.MustCompile(`(?i)next_hint:\s*(.+)`)
	statusValueRe  = regexp.MustCompile(`(?i)status:\s*(\S+)`)
)

// Parser recovers a Status from an agent's raw output. Parse is a pure
// function: the same input and configuration always yield the same Status,
// and Parse never returns an error — a malformed or missing envelope
// degrades to TagUnknown rather than failing the caller.
type Parser struct {
	cfg          *Config
	observer     observability.Observer
	fallbackRe   map[string]*regexp.Regexp
	markerLineRe *regexp.Regexp
}

// NewParser compiles the configured fallback patterns and marker search
// once, reused across calls. A nil observer is replaced with
// observability.NoOpObserver{}.
func NewParser(cfg *Config, observer observability.Observer) *Parser {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	compiled := make(map[string]*regexp.Regexp, len(cfg.FallbackPatterns))
	for tag, pattern := range cfg.FallbackPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			compiled[tag] = re
		}
	}
	markerLineRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(cfg.StatusBlockMarker))
	return &Parser{cfg: cfg, observer: observer, fallbackRe: compiled, markerLineRe: markerLineRe}
}

// Parse applies the three-tier strategy: explicit envelope, then fallback
// regex over the trailing lines, then TagUnknown.
func (p *Parser) Parse(ctx context.Context, output string) Status {
	if status, ok := p.parseExplicit(ctx, output); ok {
		return status
	}
	if status, ok := p.parseFallback(ctx, output); ok {
		return status
	}

	p.emit(ctx, EventParseUnknown, observability.LevelWarning, map[string]any{})
	return Status{Tag: TagUnknown, Context: "No status found", Source: SourceFallback}
}

func (p *Parser) parseExplicit(ctx context.Context, output string) (Status, bool) {
	loc := p.markerLineRe.FindStringIndex(output)
	if loc == nil {
		return Status{}, false
	}
	block := output[loc[1]:]

	m := statusValueRe.FindStringSubmatch(block)
	if m == nil {
		return Status{}, false
	}
	tag := strings.ToUpper(m[1])

	context := firstMatch(contextLineRe, block)
	hint := firstMatch(nextHintLineRe, block)

	if !p.cfg.isValidTag(tag) {
		p.emit(ctx, EventParseExplicit, observability.LevelWarning, map[string]any{"tag": tag, "valid": false})
		return Status{
			Tag:     TagUnknown,
			Context: "invalid status " + tag,
			Source:  SourceExplicit,
		}, true
	}

	p.emit(ctx, EventParseExplicit, observability.LevelInfo, map[string]any{"tag": tag, "valid": true})
	return Status{Tag: tag, Context: context, NextHint: hint, Source: SourceExplicit}, true
}

func (p *Parser) parseFallback(ctx context.Context, output string) (Status, bool) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	start := 0
	if n := len(lines); n > p.cfg.FallbackSearchLines {
		start = n - p.cfg.FallbackSearchLines
	}
	tail := strings.Join(lines[start:], "\n")

	for _, tag := range p.cfg.PatternPriority {
		re, ok := p.fallbackRe[tag]
		if !ok {
			continue
		}
		if re.MatchString(tail) {
			p.emit(ctx, EventParseFallback, observability.LevelInfo, map[string]any{"tag": tag})
			return Status{Tag: tag, Context: "matched fallback pattern", Source: SourceFallback}, true
		}
	}
	return Status{}, false
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (p *Parser) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	p.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "protocol",
		Data:      data,
	})
}
