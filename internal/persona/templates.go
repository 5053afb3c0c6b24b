package persona

import (
	_ "embed"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Kind selects which prompt template family to use.
type Kind string

const (
	KindGreeting Kind = "intro"
	KindSilence  Kind = "silence"
	KindReply    Kind = "response"
	KindStarter  Kind = "starter"
)

// OneOnOneGreeting replaces the persona greeting when only one human is present.
const OneOnOneGreeting = "Greet casually for a one-on-one chat."

var genericPrompts = map[Kind]string{
	KindGreeting: "Say hi casually.",
	KindSilence:  "Say something to break silence.",
	KindReply:    "Reply casually to",
	KindStarter:  "Start a casual conversation.",
}

//go:embed prompts.yaml
var defaultPrompts []byte

// Table maps template kind to persona name to prompt text.
type Table map[Kind]map[string]string

// ParseTable decodes a YAML prompt table.
func ParseTable(data []byte) (Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse prompt table: %w", err)
	}
	if table == nil {
		table = Table{}
	}
	return table, nil
}

// LoadTable reads a YAML prompt table from disk.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt table: %w", err)
	}
	return ParseTable(data)
}

// DefaultTable returns the embedded prompt table.
func DefaultTable() Table {
	table, err := ParseTable(defaultPrompts)
	if err != nil {
		panic(err)
	}
	return table
}

// Templates serves prompt lookups from a swappable table.
// It is safe for concurrent use.
type Templates struct {
	table  atomic.Pointer[Table]
	logger *zap.Logger
}

// NewTemplates wraps table. A nil table uses the embedded default.
func NewTemplates(table Table, logger *zap.Logger) *Templates {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = DefaultTable()
	}
	t := &Templates{logger: logger.With(zap.String("component", "templates"))}
	t.table.Store(&table)
	return t
}

// Replace swaps the active table.
func (t *Templates) Replace(table Table) {
	t.table.Store(&table)
}

// Prompt returns the persona-specific template for kind, or the generic
// fallback when the table has no entry.
func (t *Templates) Prompt(kind Kind, personaName string) string {
	table := *t.table.Load()
	if byPersona, ok := table[kind]; ok {
		if text, ok := byPersona[personaName]; ok && text != "" {
			return text
		}
	}
	t.logger.Warn("Prompt template missing, using generic fallback",
		zap.String("kind", string(kind)), zap.String("persona", personaName))
	return genericPrompts[kind]
}
