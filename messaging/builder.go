package messaging

import "strings"

// TemplateBuilder expands a rule action's PromptTemplate via fluent
// With* calls, mirroring the teacher's fluent Message builder but over
// placeholder substitution instead of message fields.
type TemplateBuilder struct {
	template     string
	replacements map[string]string
}

// NewTemplate starts a builder over template's raw text.
func NewTemplate(template string) *TemplateBuilder {
	return &TemplateBuilder{
		template:     template,
		replacements: make(map[string]string),
	}
}

func (b *TemplateBuilder) WithAgent(agent string) *TemplateBuilder {
	b.replacements["{agent}"] = agent
	return b
}

func (b *TemplateBuilder) WithContext(context string) *TemplateBuilder {
	b.replacements["{context}"] = context
	return b
}

func (b *TemplateBuilder) WithNextHint(hint string) *TemplateBuilder {
	b.replacements["{next_hint}"] = hint
	return b
}

func (b *TemplateBuilder) WithPrompt(prompt string) *TemplateBuilder {
	b.replacements["{prompt}"] = prompt
	return b
}

// With sets an arbitrary placeholder, for rule actions that reference a
// field beyond the four built-in ones.
func (b *TemplateBuilder) With(placeholder, value string) *TemplateBuilder {
	b.replacements[placeholder] = value
	return b
}

// Build substitutes every registered placeholder into the template.
// Placeholders with no corresponding With* call are left untouched.
func (b *TemplateBuilder) Build() string {
	out := b.template
	for placeholder, value := range b.replacements {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	return out
}
