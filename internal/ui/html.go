// Package ui renders the dialogs and grids served to the browser. Forms post datastar
// signals and responses are HTML fragments merged by element id.
package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// html is a small sticky-error writer; text is escaped, raw is written as is.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr writes name="value" with the value escaped.
func (h *html) attr(name, value string) {
	h.rawf(` %s="%s"`, name, templ.EscapeString(value))
}

func (h *html) component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

func Flash(message, kind string) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<div id="flash"`)
		h.attr("class", "flash flash-"+kind)
		h.raw(`>`)
		h.text(message)
		h.raw(`</div>`)
	})
}

// Page wraps body in the document shell. email is shown in the header when set.
func Page(title, email string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!doctype html><html><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"></script>`)
		h.raw(`<style>.flash-error{color:#b00}.flash-warning{color:#a60}table{border-collapse:collapse}td,th{padding:2px 8px}</style></head><body><header><a href="/">Inventory</a>`)
		if email != "" {
			h.raw(`<span class="user">`)
			h.text(email)
			h.raw(`</span><form method="post" action="/logout"><button>Log out</button></form>`)
		}
		h.raw(`</header><div id="flash"></div><main>`)
		h.component(ctx, body)
		h.raw(`</main></body></html>`)
	})
}

func LoginPage(message string) templ.Component {
	return Page("Log in", "", component(func(_ context.Context, h *html) {
		h.raw(`<form class="login" method="post" action="/login">`)
		if message != "" {
			h.raw(`<p class="error">`)
			h.text(message)
			h.raw(`</p>`)
		}
		h.raw(`<label>Email <input type="email" name="email" required></label>`)
		h.raw(`<label>Password <input type="password" name="password" required></label>`)
		h.raw(`<button type="submit">Log in</button></form>`)
	}))
}
