package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raysh454/a11yscan/internal/browser"
)

// ErrEngineUnavailable means no strategy could load and run the engine.
var ErrEngineUnavailable = errors.New("accessibility engine unavailable")

// Strategy is one way of getting the engine to run on a page.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context, page browser.Page) (*Result, error)
}

// Engine holds the axe-core source and builds strategies around it.
type Engine struct {
	// registration is source wrapped so the engine it defines is published
	// under engineHandle.
	registration string
}

// LoadEngine reads the axe-core bundle (axe.min.js) from path.
func LoadEngine(path string) (*Engine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine source: %w", err)
	}
	return NewEngine(string(b))
}

func NewEngine(source string) (*Engine, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty engine source", ErrEngineUnavailable)
	}
	return &Engine{registration: registrationScript(source)}, nil
}

// engineHandle is the window property invokeScript reads. The page's own
// window.axe is never invoked.
const engineHandle = "__a11yscan_axe"

// registrationScript runs source with private module, exports and define
// bindings. The engine is taken from module.exports, or from window.axe only
// when the bundle actually replaced it, and published under engineHandle.
func registrationScript(source string) string {
	return `(function (module) {
  var exports = module.exports, define = undefined;
  var __a11yscanPrior = window.axe;
` + source + `
;
  var engine = module.exports;
  if (!engine || typeof engine.run !== "function") {
    engine = window.axe !== __a11yscanPrior ? window.axe : undefined;
  }
  if (!engine || typeof engine.run !== "function") {
    throw new Error("axe did not register");
  }
  Object.defineProperty(window, "` + engineHandle + `", {
    value: engine, configurable: true, enumerable: false, writable: false
  });
  return true;
})({ exports: {} })`
}

// resetScript drops the handle left behind by an earlier attempt.
const resetScript = `(() => {
  delete window.` + engineHandle + `;
  return !("` + engineHandle + `" in window);
})()`

const invokeScript = `(async () => {
  const engine = window.` + engineHandle + `;
  if (!engine || typeof engine.run !== "function") {
    throw new Error("axe runtime unavailable");
  }
  const r = await engine.run(document, { resultTypes: ["violations", "incomplete"] });
  return { violations: r.violations || [], incomplete: r.incomplete || [] };
})()`

func (e *Engine) reset(ctx context.Context, page browser.Page) error {
	return page.Evaluate(ctx, resetScript, nil)
}

func (e *Engine) invoke(ctx context.Context, page browser.Page) (*Result, error) {
	var res Result
	if err := page.Evaluate(ctx, invokeScript, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// protocol wraps inject in the shared reset, inject, invoke sequence.
func (e *Engine) protocol(name string, inject func(ctx context.Context, page browser.Page) error) Strategy {
	return Strategy{
		Name: name,
		Attempt: func(ctx context.Context, page browser.Page) (*Result, error) {
			if err := e.reset(ctx, page); err != nil {
				return nil, fmt.Errorf("%s: reset: %w", name, err)
			}
			if err := inject(ctx, page); err != nil {
				return nil, fmt.Errorf("%s: inject: %w", name, err)
			}
			res, err := e.invoke(ctx, page)
			if err != nil {
				return nil, fmt.Errorf("%s: invoke: %w", name, err)
			}
			res.Strategy = name
			return res, nil
		},
	}
}

// ScriptTag injects the wrapped bundle as a <script> element in the page's
// own world.
func (e *Engine) ScriptTag() Strategy {
	return e.protocol("script-tag", func(ctx context.Context, page browser.Page) error {
		return page.AddScriptTag(ctx, e.registration)
	})
}

// IsolatedClosure evaluates the wrapped bundle directly, bypassing script
// element injection (and with it any CSP that blocks inline scripts).
func (e *Engine) IsolatedClosure() Strategy {
	return e.protocol("isolated-closure", func(ctx context.Context, page browser.Page) error {
		return page.Evaluate(ctx, e.registration, nil)
	})
}

// DOMSnapshot copies the rendered DOM, minus scripts and CSP meta tags, into
// a blank page of the same session and runs the script-tag strategy there.
func (e *Engine) DOMSnapshot() Strategy {
	inner := e.ScriptTag()
	return Strategy{
		Name: "dom-snapshot",
		Attempt: func(ctx context.Context, page browser.Page) (*Result, error) {
			html, err := page.Content(ctx)
			if err != nil {
				return nil, fmt.Errorf("dom-snapshot: content: %w", err)
			}
			base, _ := page.URL(ctx)
			snapshot, err := CleanSnapshot(html, base)
			if err != nil {
				return nil, fmt.Errorf("dom-snapshot: clean: %w", err)
			}

			blank, err := page.NewBlankPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("dom-snapshot: blank page: %w", err)
			}
			defer blank.Close()

			if err := blank.SetContent(ctx, snapshot); err != nil {
				return nil, fmt.Errorf("dom-snapshot: set content: %w", err)
			}
			res, err := inner.Attempt(ctx, blank)
			if err != nil {
				return nil, fmt.Errorf("dom-snapshot: %w", err)
			}
			res.Strategy = "dom-snapshot"
			return res, nil
		},
	}
}
