// Package views renders the HTML pages of the lab app.
//
// Pages are rendered on the server and work without scripts: every edit
// is a plain form post.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// SheetLink is one entry of the navigation menu.
type SheetLink struct {
	Key   string
	Label string
	Kind  string
}

// LayoutData is shared by every page.
type LayoutData struct {
	Title string
	User  string // empty when signed out
	Admin bool
}

// Layout wraps body in the page chrome.
func Layout(d LayoutData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body>
<header class="topbar"><strong>LabTrack</strong>`, templ.EscapeString(d.Title)); err != nil {
			return err
		}
		if d.User != "" {
			if _, err := fmt.Fprintf(w, `<span class="user">%s</span>
<form method="post" action="/api/logout"><button type="submit">Sair</button></form>`,
				templ.EscapeString(d.User)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</header>\n<main>\n"); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n</main>\n</body>\n</html>\n")
		return err
	})
}

// Dashboard lists the configured sheets for staff.
func Dashboard(sheets []SheetLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Planilhas</h1>` + "\n" + `<ul class="sheets">` + "\n")
		for _, s := range sheets {
			fmt.Fprintf(&b, `<li data-kind="%s"><a href="%s">%s</a></li>`+"\n",
				templ.EscapeString(s.Kind), templ.EscapeString(SheetPath(s.Key)), templ.EscapeString(s.Label))
		}
		b.WriteString("</ul>\n" + `<p><a href="/consulta">Consulta pública</a></p>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// PublicRow is one line of the read-only view.
type PublicRow struct {
	Patient     string
	Date        string
	WithdrawnBy string
}

// PublicViewData feeds PublicView.
type PublicViewData struct {
	Sheets      []SheetLink
	Current     string
	Patient     string
	WithdrawnBy string
	Rows        []PublicRow
	Page        int
	Pages       int
	Total       int
}

// PublicView is the read-only exam lookup.
func PublicView(d PublicViewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Consulta de exames</h1>` + "\n" + `<form method="get" action="/consulta">` + "\n")
		b.WriteString(`<select name="sheet">`)
		for _, s := range d.Sheets {
			sel := ""
			if s.Key == d.Current {
				sel = " selected"
			}
			fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`,
				templ.EscapeString(s.Key), sel, templ.EscapeString(s.Label))
		}
		b.WriteString("</select>\n")
		fmt.Fprintf(&b, `<input name="q" placeholder="Paciente" value="%s">`+"\n", templ.EscapeString(d.Patient))
		fmt.Fprintf(&b, `<input name="withdrawnBy" placeholder="Retirado por" value="%s">`+"\n", templ.EscapeString(d.WithdrawnBy))
		b.WriteString(`<button type="submit">Buscar</button>` + "\n</form>\n")

		if len(d.Rows) == 0 {
			b.WriteString(`<p class="empty">Nenhum exame encontrado.</p>`)
		} else {
			b.WriteString("<table>\n<thead><tr><th>Paciente</th><th>Data Recebida</th><th>Retirado Por</th></tr></thead>\n<tbody>\n")
			for _, r := range d.Rows {
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
					templ.EscapeString(r.Patient), templ.EscapeString(r.Date), templ.EscapeString(r.WithdrawnBy))
			}
			b.WriteString("</tbody>\n</table>\n")
			fmt.Fprintf(&b, `<p class="pager">Página %d de %d (%d exames)</p>`, d.Page, d.Pages, d.Total)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Login is the sign-in form. next is where to go after a successful login.
func Login(next, errMsg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Entrar</h1>` + "\n")
		if errMsg != "" {
			fmt.Fprintf(&b, `<p class="error" role="alert">%s</p>`+"\n", templ.EscapeString(errMsg))
		}
		fmt.Fprintf(&b, `<form method="post" action="/api/login">
<input type="hidden" name="next" value="%s">
<input type="email" name="email" autocomplete="username" required>
<input type="password" name="password" autocomplete="current-password" required>
<button type="submit">Entrar</button>
</form>`, templ.EscapeString(next))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders an error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-error" role="alert"><p>%s</p><p>%s</p><small>Código: %s</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}
