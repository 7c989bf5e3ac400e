package providers

import (
	"fmt"
	"sort"
	"strings"
)

// promptSpec is the per-backend flavor of the shared prompt layout.
type promptSpec struct {
	system    string
	task      string
	maxTokens int
}

func (p promptSpec) build(schema Schema) func(Request) Prompt {
	keys := schemaKeys(schema)
	return func(req Request) Prompt {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n\n", p.task)
		fmt.Fprintf(&b, "TITLE: %s\n", req.Title)
		if req.Genre != "" {
			fmt.Fprintf(&b, "GENRE: %s\n", req.Genre)
		}
		if req.BudgetContext != "" {
			fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(req.BudgetContext))
		}
		if len(req.Extra) > 0 {
			b.WriteString("\nCONTEXT FROM PRIMARY ANALYSIS:\n")
			extraKeys := make([]string, 0, len(req.Extra))
			for k := range req.Extra {
				extraKeys = append(extraKeys, k)
			}
			sort.Strings(extraKeys)
			for _, k := range extraKeys {
				fmt.Fprintf(&b, "- %s: %v\n", k, req.Extra[k])
			}
		}
		fmt.Fprintf(&b, "\nSCREENPLAY:\n%s\n\n", req.Text)
		fmt.Fprintf(&b, "Respond with a single JSON object using these keys: %s.", strings.Join(keys, ", "))
		return Prompt{
			System:    p.system,
			User:      b.String(),
			MaxTokens: p.maxTokens,
			JSON:      true,
		}
	}
}

func schemaKeys(s Schema) []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	add(s.ScoreField)
	add(s.VerdictField)
	for _, f := range s.Fields {
		add(f.Name)
	}
	return keys
}
