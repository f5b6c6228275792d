// Package templates renders campaign content with Liquid merge tags, so
// operators can write {{ first_name | default: "there" }} in subjects and
// bodies and have it resolved per recipient before tracking injection.
package templates

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/brightsend/crm/internal/domain"
)

// Engine wraps a Liquid engine with domain filters and a parsed-template
// cache keyed by the raw source. Safe for concurrent use.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewEngine creates a template engine with the CRM filter set registered.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ first_name | default: "there" }}
	e.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// {{ name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// {{ user_input | escape }}
	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// Render resolves merge tags in source against the given bindings. Missing
// variables render as empty strings (lax mode), which is what a live send
// wants: a half-filled greeting beats a bounced batch.
func (e *Engine) Render(source string, bindings map[string]interface{}) (string, error) {
	if source == "" {
		return "", nil
	}

	var tpl *liquid.Template
	if cached, ok := e.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := e.engine.ParseString(source)
		if err != nil {
			return "", fmt.Errorf("parse template: %w", err)
		}
		e.cache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// ClientBindings builds the merge-tag namespace for one recipient. Custom
// fields are flattened in last so they can't shadow the core fields.
func ClientBindings(c *domain.Client) map[string]interface{} {
	b := map[string]interface{}{
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"phone":      c.Phone,
		"company":    c.Company,
	}
	for k, v := range c.CustomFields {
		if _, exists := b[k]; !exists {
			b[k] = v
		}
	}
	return b
}
